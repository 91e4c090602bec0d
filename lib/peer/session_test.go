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
package peer

import (
	"crypto/sha1"
	"io/ioutil"
	"net"
	"os"
	"testing"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/assembler"
	"github.com/kraken-torrent/swarm/lib/bencode"
	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/kraken-torrent/swarm/lib/swarmstate"
	"github.com/kraken-torrent/swarm/lib/wire"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

func listen(t *testing.T) net.Listener {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	return l
}

func newTestSession(
	t *testing.T,
	addr string,
	infoHash core.InfoHash,
	state *swarmstate.State,
	metadataOnly bool) *Session {

	peerID, err := core.RandomPeerID()
	require.NoError(t, err)
	s, err := NewSession(
		peerID, infoHash, addr, state, metadataOnly, Config{},
		tally.NoopScope, zap.NewNop().Sugar())
	require.NoError(t, err)
	return s
}

func readHandshake(t *testing.T, nc net.Conn, infoHash core.InfoHash) wire.Handshake {
	h, err := wire.ReadHandshake(nc, infoHash)
	require.NoError(t, err)
	return h
}

func TestSessionHandshakeAndFullPieceDownload(t *testing.T) {
	require := require.New(t)

	full := make([]byte, 32768)
	for i := range full {
		full[i] = 'x'
	}
	digest := sha1.Sum(full)

	info := &metainfo.TorrentInfo{
		Name:        "single.bin",
		Length:      32768,
		PieceLength: 32768,
		Pieces:      [][20]byte{digest},
	}

	outFile, err := ioutil.TempFile("", "session-test-")
	require.NoError(err)
	outPath := outFile.Name()
	require.NoError(outFile.Close())
	defer os.Remove(outPath)

	state := swarmstate.NewInstalled(info, outPath, func(int) int64 { return 0 }, assembler.Config{})

	l := listen(t)
	defer l.Close()

	remoteDone := make(chan error, 1)
	go func() {
		remoteDone <- func() error {
			nc, err := l.Accept()
			if err != nil {
				return err
			}
			defer nc.Close()

			remotePeerID, err := core.RandomPeerID()
			if err != nil {
				return err
			}
			readHandshake(t, nc, info.InfoHash())
			if err := wire.WriteHandshake(nc, wire.Handshake{
				InfoHash: info.InfoHash(), PeerID: remotePeerID,
			}); err != nil {
				return err
			}

			if err := wire.WriteMessage(nc, wire.Message{ID: wire.Bitfield, Payload: []byte{0x80}}); err != nil {
				return err
			}
			msg, err := wire.ReadMessage(nc)
			if err != nil {
				return err
			}
			if msg.ID != wire.Interested {
				t.Errorf("expected Interested, got %v", msg.ID)
			}
			if err := wire.WriteMessage(nc, wire.Message{ID: wire.Unchoke}); err != nil {
				return err
			}

			for i := 0; i < 2; i++ {
				msg, err := wire.ReadMessage(nc)
				if err != nil {
					return err
				}
				if msg.ID != wire.Request {
					t.Errorf("expected Request, got %v", msg.ID)
					continue
				}
				index, begin, length, err := wire.DecodeRequest(msg.Payload)
				if err != nil {
					return err
				}
				block := full[begin : begin+length]
				if err := wire.WriteMessage(nc, wire.Message{
					ID: wire.Piece, Payload: wire.EncodePiece(index, begin, block),
				}); err != nil {
					return err
				}
			}
			return nil
		}()
	}()

	s := newTestSession(t, l.Addr().String(), info.InfoHash(), state, false)
	err = s.Run()
	require.NoError(err)
	require.Equal(StateDone, s.phase)

	require.NoError(<-remoteDone)

	written, err := ioutil.ReadFile(outPath)
	require.NoError(err)
	require.Equal(full, written)
	require.True(state.Scheduler().Done())
}

func TestSessionMetadataOnlyBootstrap(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{
		Name:        "magnet.bin",
		Length:      16384,
		PieceLength: 16384,
		Pieces:      make([][20]byte, 1),
	}
	chunk := bencodeDescriptor(t, info)
	infoHash := info.InfoHash()

	state := swarmstate.New("/tmp/unused", func(int) int64 { return 0 }, assembler.Config{})

	l := listen(t)
	defer l.Close()

	remoteDone := make(chan error, 1)
	go func() {
		remoteDone <- func() error {
			nc, err := l.Accept()
			if err != nil {
				return err
			}
			defer nc.Close()

			remotePeerID, err := core.RandomPeerID()
			if err != nil {
				return err
			}
			readHandshake(t, nc, infoHash)
			if err := wire.WriteHandshake(nc, wire.Handshake{
				InfoHash: infoHash, PeerID: remotePeerID, Extensions: true,
			}); err != nil {
				return err
			}

			if err := wire.WriteMessage(nc, wire.Message{ID: wire.Bitfield, Payload: []byte{0x00}}); err != nil {
				return err
			}

			msg, err := wire.ReadMessage(nc)
			if err != nil {
				return err
			}
			if msg.ID != wire.Extended {
				t.Errorf("expected extension handshake, got %v", msg.ID)
			}
			payload := wire.EncodeExtHandshake(map[string]int64{wire.ExtensionName: 3})
			if err := wire.WriteMessage(nc, wire.Message{
				ID: wire.Extended, Payload: append([]byte{wire.ExtHandshakeID}, payload...),
			}); err != nil {
				return err
			}

			msg, err = wire.ReadMessage(nc)
			if err != nil {
				return err
			}
			if msg.ID != wire.Extended || msg.Payload[0] != 3 {
				t.Errorf("expected metadata request on ext id 3, got %v", msg)
			}
			data := wire.EncodeMetadataData(0, len(chunk), chunk)
			return wire.WriteMessage(nc, wire.Message{
				ID: wire.Extended, Payload: append([]byte{byte(wire.LocalMetadataExtensionID)}, data...),
			})
		}()
	}()

	s := newTestSession(t, l.Addr().String(), infoHash, state, true)
	err := s.Run()
	require.NoError(err)
	require.Equal(StateDone, s.phase)
	require.NoError(<-remoteDone)

	require.NotNil(state.Descriptor())
	require.Equal(info.Name, state.Descriptor().Name)
}

func TestSessionHandshakeInfoHashMismatchFails(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{Length: 1, PieceLength: 1, Pieces: make([][20]byte, 1)}
	state := swarmstate.NewInstalled(info, "/tmp/unused", func(int) int64 { return 0 }, assembler.Config{})

	l := listen(t)
	defer l.Close()

	otherHash := info.InfoHash()
	otherHash[0] ^= 0xFF

	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		remotePeerID, _ := core.RandomPeerID()
		// Read whatever the dialer sends, then respond with a mismatched hash.
		buf := make([]byte, 68)
		nc.Read(buf)
		wire.WriteHandshake(nc, wire.Handshake{InfoHash: otherHash, PeerID: remotePeerID})
	}()

	s := newTestSession(t, l.Addr().String(), info.InfoHash(), state, false)
	err := s.Run()
	require.Error(err)
}

// bencodeDescriptor encodes info the same way metainfo.ParseDescriptor
// expects to decode it, for use as a metadata-exchange "data" chunk in
// tests.
func bencodeDescriptor(t *testing.T, info *metainfo.TorrentInfo) []byte {
	return bencode.Encode(info.Value())
}
