// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomPeerIDIsTwentyBytes(t *testing.T) {
	require := require.New(t)

	p, err := RandomPeerID()
	require.NoError(err)
	require.Len(p.Bytes(), 20)
}

func TestRandomPeerIDUnique(t *testing.T) {
	require := require.New(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p, err := RandomPeerID()
		require.NoError(err)
		require.False(seen[p.String()])
		seen[p.String()] = true
	}
}

func TestNewPeerIDErrors(t *testing.T) {
	tests := []struct {
		desc  string
		input string
	}{
		{"empty", ""},
		{"invalid hex", "invalid"},
		{"too short", "beef"},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := NewPeerID(test.input)
			require.Error(t, err)
		})
	}
}

func TestPeerIDRoundTrip(t *testing.T) {
	require := require.New(t)

	p, err := RandomPeerID()
	require.NoError(err)

	p2, err := NewPeerID(p.String())
	require.NoError(err)
	require.Equal(p, p2)
}
