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
package swarmstate

import (
	"testing"
	"time"

	"github.com/kraken-torrent/swarm/lib/assembler"
	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/stretchr/testify/require"
)

func TestStateNotReadyUntilInstalled(t *testing.T) {
	s := New("/tmp/out", func(int) int64 { return 0 }, assembler.Config{})
	require.Nil(t, s.Descriptor())
	require.Nil(t, s.Scheduler())
	require.Nil(t, s.Assembler())

	select {
	case <-s.Ready():
		t.Fatal("expected Ready to block before Install")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestStateInstallSeedsSchedulerAndAssembler(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{
		Length:      100,
		PieceLength: 40,
		Pieces:      make([][20]byte, 3),
	}
	s := New("/tmp/out", func(int) int64 { return 0 }, assembler.Config{})
	s.Install(info)

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("expected Ready to close after Install")
	}

	require.Equal(info, s.Descriptor())
	require.NotNil(s.Scheduler())
	require.NotNil(s.Assembler())
	require.Equal(3, s.Scheduler().NumAvailable())
}

func TestStateInstallIsIdempotent(t *testing.T) {
	require := require.New(t)

	info1 := &metainfo.TorrentInfo{Length: 1, PieceLength: 1, Pieces: make([][20]byte, 1)}
	info2 := &metainfo.TorrentInfo{Length: 2, PieceLength: 1, Pieces: make([][20]byte, 2)}

	s := New("", func(int) int64 { return 0 }, assembler.Config{})
	s.Install(info1)
	s.Install(info2)

	require.Equal(info1, s.Descriptor())
}
