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
package tracker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/bencode"

	"github.com/stretchr/testify/require"
)

func TestAnnounceCompactPeers(t *testing.T) {
	require := require.New(t)

	compact := []byte{127, 0, 0, 1, 0x1A, 0xE1} // 127.0.0.1:6881
	body := bencode.Encode(bencode.Dict(map[string]bencode.Value{
		"interval": bencode.Int(1800),
		"peers":    bencode.Bytes(compact),
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("1", r.URL.Query().Get("compact"))
		w.Write(body)
	}))
	defer srv.Close()

	c := New(Config{})
	infoHash, err := core.NewInfoHashFromHex("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(err)
	peerID, err := core.RandomPeerID()
	require.NoError(err)

	peers, err := c.Announce(srv.URL, infoHash, peerID, 0, 0, 100, 6881)
	require.NoError(err)
	require.Equal([]string{"127.0.0.1:6881"}, peers)
}

func TestAnnounceFailureReason(t *testing.T) {
	require := require.New(t)

	body := bencode.Encode(bencode.Dict(map[string]bencode.Value{
		"failure reason": bencode.String("unregistered torrent"),
	}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	c := New(Config{})
	infoHash, err := core.NewInfoHashFromHex("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(err)
	peerID, err := core.RandomPeerID()
	require.NoError(err)

	_, err = c.Announce(srv.URL, infoHash, peerID, 0, 0, 100, 6881)
	require.Error(err)
}

func TestParseDictPeers(t *testing.T) {
	require := require.New(t)

	list := []bencode.Value{
		bencode.Dict(map[string]bencode.Value{
			"ip":   bencode.String("10.0.0.1"),
			"port": bencode.Int(6881),
		}),
	}
	peers, err := parseDictPeers(list)
	require.NoError(err)
	require.Equal([]string{"10.0.0.1:6881"}, peers)
}

func TestParseCompactPeersInvalidLength(t *testing.T) {
	_, err := parseCompactPeers([]byte{1, 2, 3})
	require.Error(t, err)
}
