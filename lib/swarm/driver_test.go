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
package swarm

import (
	"crypto/sha1"
	"io/ioutil"
	"net"
	"os"
	"testing"
	"time"

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

// fullFileServer accepts one connection on l and serves any requested block
// out of file, indexed by (piece, begin), until the dialer disconnects.
// Which session ends up assigned which piece is up to the scheduler, so a
// test server has to be able to answer for all of them.
func fullFileServer(t *testing.T, l net.Listener, infoHash core.InfoHash, file []byte, pieceLen int64) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- func() error {
			nc, err := l.Accept()
			if err != nil {
				return err
			}
			defer nc.Close()

			remotePeerID, err := core.RandomPeerID()
			if err != nil {
				return err
			}
			if _, err := wire.ReadHandshake(nc, infoHash); err != nil {
				return err
			}
			if err := wire.WriteHandshake(nc, wire.Handshake{InfoHash: infoHash, PeerID: remotePeerID}); err != nil {
				return err
			}
			if err := wire.WriteMessage(nc, wire.Message{ID: wire.Bitfield, Payload: []byte{0xFF}}); err != nil {
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
			for {
				msg, err := wire.ReadMessage(nc)
				if err == wire.ErrUnexpectedEOF {
					// Dialer drained all the work it wanted and hung up.
					return nil
				}
				if err != nil {
					return err
				}
				if msg.ID != wire.Request {
					continue
				}
				index, begin, length, err := wire.DecodeRequest(msg.Payload)
				if err != nil {
					return err
				}
				off := int64(index)*pieceLen + int64(begin)
				block := file[off : off+int64(length)]
				if err := wire.WriteMessage(nc, wire.Message{
					ID: wire.Piece, Payload: wire.EncodePiece(index, begin, block),
				}); err != nil {
					return err
				}
			}
		}()
	}()
	return done
}

func TestDriverDownloadAcrossTwoPeers(t *testing.T) {
	require := require.New(t)

	pieceLen := int64(32768)
	p0 := make([]byte, pieceLen)
	p1 := make([]byte, pieceLen)
	for i := range p0 {
		p0[i] = 'a'
	}
	for i := range p1 {
		p1[i] = 'b'
	}
	info := &metainfo.TorrentInfo{
		Name:        "two-piece.bin",
		Length:      pieceLen * 2,
		PieceLength: pieceLen,
		Pieces:      [][20]byte{sha1.Sum(p0), sha1.Sum(p1)},
	}

	outFile, err := ioutil.TempFile("", "driver-test-")
	require.NoError(err)
	outPath := outFile.Name()
	require.NoError(outFile.Close())
	defer os.Remove(outPath)

	state := swarmstate.NewInstalled(info, outPath, func(i int) int64 { return int64(i) * pieceLen }, assembler.Config{})

	l0, err := net.Listen("tcp", "localhost:0")
	require.NoError(err)
	defer l0.Close()
	l1, err := net.Listen("tcp", "localhost:0")
	require.NoError(err)
	defer l1.Close()

	file := append(append([]byte{}, p0...), p1...)
	done0 := fullFileServer(t, l0, info.InfoHash(), file, pieceLen)
	done1 := fullFileServer(t, l1, info.InfoHash(), file, pieceLen)

	localPeerID, err := core.RandomPeerID()
	require.NoError(err)

	d := New(localPeerID, info.InfoHash(), state, Config{}, tally.NoopScope, zap.NewNop().Sugar())
	err = d.Download([]string{l0.Addr().String(), l1.Addr().String()})
	require.NoError(err)

	require.NoError(<-done0)
	require.NoError(<-done1)

	written, err := ioutil.ReadFile(outPath)
	require.NoError(err)
	require.Equal(file, written)
	require.True(state.Scheduler().Done())
	require.Equal(2, state.Scheduler().NumCompleted())
}

func TestDriverDownloadNoPeersFails(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{Length: 1, PieceLength: 1, Pieces: make([][20]byte, 1)}
	state := swarmstate.NewInstalled(info, "/tmp/unused", func(int) int64 { return 0 }, assembler.Config{})
	localPeerID, err := core.RandomPeerID()
	require.NoError(err)

	d := New(localPeerID, info.InfoHash(), state, Config{}, tally.NoopScope, zap.NewNop().Sugar())
	err = d.Download(nil)
	require.Equal(ErrNoPeers, err)
}

func TestDriverDownloadIncompleteWhenPeerUnreachable(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{Length: 1, PieceLength: 1, Pieces: make([][20]byte, 1)}
	state := swarmstate.NewInstalled(info, "/tmp/unused", func(int) int64 { return 0 }, assembler.Config{})
	localPeerID, err := core.RandomPeerID()
	require.NoError(err)

	// Bind and immediately close a listener so the address is refused.
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(err)
	addr := l.Addr().String()
	l.Close()

	d := New(localPeerID, info.InfoHash(), state, Config{MaxSessionFailures: 1}, tally.NoopScope, zap.NewNop().Sugar())
	err = d.Download([]string{addr})
	require.Equal(ErrIncomplete, err)
}

func TestDriverRetriesWithBackoffBeforeGivingUp(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{Length: 1, PieceLength: 1, Pieces: make([][20]byte, 1)}
	state := swarmstate.NewInstalled(info, "/tmp/unused", func(int) int64 { return 0 }, assembler.Config{})
	localPeerID, err := core.RandomPeerID()
	require.NoError(err)

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(err)
	addr := l.Addr().String()
	l.Close()

	// A small RetryBackoff keeps the test fast while still exercising the
	// sleep-then-redial path across multiple consecutive failures.
	d := New(localPeerID, info.InfoHash(), state,
		Config{MaxSessionFailures: 3, RetryBackoff: time.Millisecond},
		tally.NoopScope, zap.NewNop().Sugar())
	err = d.Download([]string{addr})
	require.Equal(ErrIncomplete, err)
}

func TestDriverBootstrapMetadataNoPeersFails(t *testing.T) {
	require := require.New(t)

	info := &metainfo.TorrentInfo{Length: 1, PieceLength: 1, Pieces: make([][20]byte, 1)}
	state := swarmstate.New("", func(int) int64 { return 0 }, assembler.Config{})
	localPeerID, err := core.RandomPeerID()
	require.NoError(err)

	d := New(localPeerID, info.InfoHash(), state, Config{}, tally.NoopScope, zap.NewNop().Sugar())
	require.Equal(ErrNoPeers, d.BootstrapMetadata(nil))
}

func TestDriverMagnetBootstrapInstallsDescriptor(t *testing.T) {
	require := require.New(t)

	pieceLen := int64(16384)
	data := make([]byte, pieceLen)
	for i := range data {
		data[i] = 'z'
	}
	info := &metainfo.TorrentInfo{
		Name:        "magnet.bin",
		Length:      pieceLen,
		PieceLength: pieceLen,
		Pieces:      [][20]byte{sha1.Sum(data)},
	}
	infoHash := info.InfoHash()
	descriptor := bencode.Encode(info.Value())

	outFile, err := ioutil.TempFile("", "driver-magnet-test-")
	require.NoError(err)
	outPath := outFile.Name()
	require.NoError(outFile.Close())
	defer os.Remove(outPath)

	state := swarmstate.New(outPath, func(int) int64 { return 0 }, assembler.Config{})

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(err)
	defer l.Close()

	done := make(chan error, 1)
	go func() {
		done <- func() error {
			nc, err := l.Accept()
			if err != nil {
				return err
			}
			defer nc.Close()

			remotePeerID, err := core.RandomPeerID()
			if err != nil {
				return err
			}
			if _, err := wire.ReadHandshake(nc, infoHash); err != nil {
				return err
			}
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
			payload := wire.EncodeExtHandshake(map[string]int64{wire.ExtensionName: 7})
			if err := wire.WriteMessage(nc, wire.Message{
				ID: wire.Extended, Payload: append([]byte{wire.ExtHandshakeID}, payload...),
			}); err != nil {
				return err
			}
			if msg, err = wire.ReadMessage(nc); err != nil {
				return err
			}
			if msg.ID != wire.Extended || msg.Payload[0] != 7 {
				t.Errorf("expected metadata request on ext id 7, got %v", msg)
			}
			metaMsg := wire.EncodeMetadataData(0, len(descriptor), descriptor)
			return wire.WriteMessage(nc, wire.Message{
				ID: wire.Extended, Payload: append([]byte{byte(wire.LocalMetadataExtensionID)}, metaMsg...),
			})
		}()
	}()

	localPeerID, err := core.RandomPeerID()
	require.NoError(err)

	d := New(localPeerID, infoHash, state, Config{}, tally.NoopScope, zap.NewNop().Sugar())
	err = d.BootstrapMetadata([]string{l.Addr().String()})
	require.NoError(err)
	require.NoError(<-done)

	require.NotNil(state.Descriptor())
	require.Equal(info.Name, state.Descriptor().Name)
}
