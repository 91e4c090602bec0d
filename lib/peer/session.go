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

// Package peer implements the per-connection protocol state machine: the
// handshake, the extension negotiation and metadata exchange, and the
// choke/request/piece exchange that drains work from the shared scheduler.
package peer

import (
	"errors"
	"fmt"
	"net"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/assembler"
	"github.com/kraken-torrent/swarm/lib/bandwidth"
	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/kraken-torrent/swarm/lib/swarmstate"
	"github.com/kraken-torrent/swarm/lib/wire"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// State names the peer session's protocol state, matching the named states
// of the per-connection state machine.
type State int

// The per-connection states. Connecting is the initial state; Closed and
// Done are terminal.
const (
	StateConnecting State = iota
	StateHandshakeOut
	StateHandshakeIn
	StatePostHandshake
	StateMetadataFetch
	StateAwaitUnchoke
	StateDownloading
	StateWorkReady
	StateDone
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateHandshakeOut:
		return "HandshakeOut"
	case StateHandshakeIn:
		return "HandshakeIn"
	case StatePostHandshake:
		return "PostHandshake"
	case StateMetadataFetch:
		return "MetadataFetch"
	case StateAwaitUnchoke:
		return "AwaitUnchoke"
	case StateDownloading:
		return "Downloading"
	case StateWorkReady:
		return "WorkReady"
	case StateDone:
		return "Done"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrConnectFailed is returned when dialing the remote peer times out or is
// refused.
var ErrConnectFailed = errors.New("peer: connect failed")

// Session drives the protocol state machine for one TCP connection to one
// remote peer, optionally bootstrapping the torrent descriptor via the
// ut_metadata extension before draining pieces from the shared scheduler.
type Session struct {
	localPeerID core.PeerID
	infoHash    core.InfoHash
	addr        string
	config      Config
	state       *swarmstate.State

	// metadataOnly sessions stop at StateDone once the descriptor has been
	// installed, rather than continuing on to download pieces -- used for
	// the magnet-only bootstrap peer.
	metadataOnly bool

	bandwidth *bandwidth.Limiter
	stats     tally.Scope
	logger    *zap.SugaredLogger

	closed *atomic.Bool

	phase State
	nc    net.Conn

	remotePeerID        core.PeerID
	remoteExtensions    bool
	remoteMetadataExtID int64

	currentPiece int
	havePiece    bool
	pending      []assembler.BlockRequest
}

// NewSession creates a Session that will dial addr and drive the protocol
// state machine against state, which may or may not already have a
// descriptor installed.
func NewSession(
	localPeerID core.PeerID,
	infoHash core.InfoHash,
	addr string,
	state *swarmstate.State,
	metadataOnly bool,
	config Config,
	stats tally.Scope,
	logger *zap.SugaredLogger) (*Session, error) {

	config = config.applyDefaults()

	bl := bandwidth.NewLimiter(config.Bandwidth, logger)

	return &Session{
		localPeerID:         localPeerID,
		infoHash:            infoHash,
		addr:                addr,
		config:              config,
		state:               state,
		metadataOnly:        metadataOnly,
		bandwidth:           bl,
		stats:               stats.Tagged(map[string]string{"module": "peer"}),
		logger:              logger,
		closed:              atomic.NewBool(false),
		phase:               StateConnecting,
		remoteMetadataExtID: -1,
	}, nil
}

// Run drives the session through its states until it reaches Done (all
// available work drained, or metadata-only bootstrap succeeded) or a fatal
// error closes it. On fatal error with a piece assigned, that piece is
// requeued before Run returns.
func (s *Session) Run() error {
	if err := s.connect(); err != nil {
		return err
	}
	defer s.close()

	if err := s.handshakeOut(); err != nil {
		return s.fail(err)
	}
	if err := s.handshakeIn(); err != nil {
		return s.fail(err)
	}

	for {
		switch s.phase {
		case StatePostHandshake:
			if err := s.postHandshake(); err != nil {
				return s.fail(err)
			}
		case StateMetadataFetch:
			if err := s.metadataFetch(); err != nil {
				return s.fail(err)
			}
		case StateAwaitUnchoke:
			if err := s.awaitUnchoke(); err != nil {
				return s.fail(err)
			}
		case StateDownloading:
			if err := s.downloading(); err != nil {
				return s.fail(err)
			}
		case StateWorkReady:
			if err := s.workReady(); err != nil {
				return s.fail(err)
			}
		case StateDone:
			return nil
		default:
			return fmt.Errorf("peer: unexpected state %s", s.phase)
		}
	}
}

func (s *Session) connect() error {
	nc, err := net.DialTimeout("tcp", s.addr, s.config.ConnectTimeout)
	if err != nil {
		return ErrConnectFailed
	}
	if s.closed.Load() {
		// Cancelled while dialing.
		nc.Close()
		return ErrConnectFailed
	}
	s.nc = nc
	s.phase = StateHandshakeOut
	return nil
}

func (s *Session) handshakeOut() error {
	h := wire.Handshake{
		InfoHash:   s.infoHash,
		PeerID:     s.localPeerID,
		Extensions: s.needMetadata(),
	}
	if err := wire.WriteHandshake(s.nc, h); err != nil {
		return fmt.Errorf("send handshake: %s", err)
	}
	s.phase = StateHandshakeIn
	return nil
}

func (s *Session) handshakeIn() error {
	h, err := wire.ReadHandshake(s.nc, s.infoHash)
	if err != nil {
		return fmt.Errorf("read handshake: %s", err)
	}
	s.remotePeerID = h.PeerID
	s.remoteExtensions = h.Extensions
	s.phase = StatePostHandshake
	return nil
}

// needMetadata reports whether this session still needs to obtain the
// descriptor before it can download pieces.
func (s *Session) needMetadata() bool {
	return s.state.Descriptor() == nil
}

func (s *Session) postHandshake() error {
	msg, err := wire.ReadMessage(s.nc)
	if err != nil {
		return fmt.Errorf("read message: %s", err)
	}
	if msg == nil {
		// Keep-alive; stay in PostHandshake.
		return nil
	}

	switch msg.ID {
	case wire.Bitfield:
		if s.remoteExtensions && s.needMetadata() {
			payload := wire.EncodeExtHandshake(map[string]int64{
				wire.ExtensionName: wire.LocalMetadataExtensionID,
			})
			if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Extended, Payload: append([]byte{wire.ExtHandshakeID}, payload...)}); err != nil {
				return fmt.Errorf("send extension handshake: %s", err)
			}
			return nil // stay in PostHandshake
		}
		if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Interested}); err != nil {
			return fmt.Errorf("send interested: %s", err)
		}
		s.phase = StateAwaitUnchoke
		return nil
	case wire.Extended:
		return s.handleExtended(msg.Payload)
	default:
		// Choke, have, cancel, port, and anything else are safely ignored
		// while waiting for the bitfield/extension handshake.
		return nil
	}
}

func (s *Session) handleExtended(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("extended message: empty payload")
	}
	extID := payload[0]
	body := payload[1:]

	if extID != wire.ExtHandshakeID {
		// Not our concern at this state; ignore.
		return nil
	}

	m, err := wire.DecodeExtHandshake(body)
	if err != nil {
		return fmt.Errorf("decode extension handshake: %s", err)
	}
	id, ok := m[wire.ExtensionName]
	if !ok {
		// Remote doesn't support metadata exchange; fall back to interested.
		if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Interested}); err != nil {
			return fmt.Errorf("send interested: %s", err)
		}
		s.phase = StateAwaitUnchoke
		return nil
	}
	s.remoteMetadataExtID = id

	if s.needMetadata() {
		req := wire.EncodeMetadataRequest(0)
		if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Extended, Payload: append([]byte{byte(id)}, req...)}); err != nil {
			return fmt.Errorf("send metadata request: %s", err)
		}
		s.phase = StateMetadataFetch
		return nil
	}

	if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Interested}); err != nil {
		return fmt.Errorf("send interested: %s", err)
	}
	s.phase = StateAwaitUnchoke
	return nil
}

func (s *Session) metadataFetch() error {
	msg, err := wire.ReadMessage(s.nc)
	if err != nil {
		return fmt.Errorf("read message: %s", err)
	}
	if msg == nil {
		return nil
	}
	if msg.ID != wire.Extended {
		return nil
	}
	// The remote tags messages it sends us with the id we advertised for
	// ut_metadata in our own handshake, not the id it advertised for itself.
	if len(msg.Payload) == 0 || msg.Payload[0] != byte(wire.LocalMetadataExtensionID) {
		return nil
	}

	mm, err := wire.DecodeMetadataMessage(msg.Payload[1:])
	if err != nil {
		return fmt.Errorf("decode metadata message: %s", err)
	}
	if mm.MsgType != wire.MetadataData {
		// Request or reject; not actionable for a downloader-only client.
		return nil
	}

	info, hash, err := metainfo.ParseDescriptor(mm.Chunk)
	if err != nil {
		return fmt.Errorf("parse descriptor: %s", err)
	}
	if hash != s.infoHash {
		return fmt.Errorf("metadata info hash mismatch: got %s, want %s", hash, s.infoHash)
	}

	s.state.Install(info)

	if s.metadataOnly {
		s.phase = StateDone
		return nil
	}
	if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Interested}); err != nil {
		return fmt.Errorf("send interested: %s", err)
	}
	s.phase = StateAwaitUnchoke
	return nil
}

func (s *Session) awaitUnchoke() error {
	msg, err := wire.ReadMessage(s.nc)
	if err != nil {
		return fmt.Errorf("read message: %s", err)
	}
	if msg == nil {
		return nil
	}
	if msg.ID != wire.Unchoke {
		return nil
	}

	idx, ok := s.state.Scheduler().Take()
	if !ok {
		s.phase = StateDone
		return nil
	}
	s.currentPiece = idx
	s.havePiece = true

	if err := s.issueBlockRequests(idx); err != nil {
		return err
	}
	s.phase = StateDownloading
	return nil
}

func (s *Session) issueBlockRequests(piece int) error {
	asm := s.state.Assembler()
	reqs := asm.BlockRequests(piece)
	max := asm.MaxInFlight()
	if max > len(reqs) {
		max = len(reqs)
	}
	for _, r := range reqs[:max] {
		payload := wire.EncodeRequest(r.Index, r.Begin, r.Length)
		if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Request, Payload: payload}); err != nil {
			return fmt.Errorf("send request: %s", err)
		}
	}
	// Remaining requests beyond the pipeline depth are issued as responses
	// arrive; for a single download session draining one piece at a time
	// this keeps at most MaxInFlight requests outstanding.
	s.pending = reqs[max:]
	return nil
}

func (s *Session) downloading() error {
	msg, err := wire.ReadMessage(s.nc)
	if err != nil {
		return fmt.Errorf("read message: %s", err)
	}
	if msg == nil {
		return nil
	}
	if msg.ID != wire.Piece {
		s.logger.Debugf("Ignoring message id %d from %s while downloading", msg.ID, s.addr)
		return nil
	}

	index, begin, block, err := wire.DecodePiece(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode piece message: %s", err)
	}

	if err := s.bandwidth.ReserveIngress(int64(len(block))); err != nil {
		return fmt.Errorf("ingress bandwidth: %s", err)
	}
	s.stats.Counter("blocks_received").Inc(1)

	asm := s.state.Assembler()
	complete, err := asm.AddBlock(int(index), begin, block)
	if err != nil {
		// Digest mismatch: assembler already requeued the piece.
		s.havePiece = false
		s.stats.Counter("piece_verification_failures").Inc(1)
		return err
	}

	if len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		payload := wire.EncodeRequest(next.Index, next.Begin, next.Length)
		if err := wire.WriteMessage(s.nc, wire.Message{ID: wire.Request, Payload: payload}); err != nil {
			return fmt.Errorf("send request: %s", err)
		}
	}

	if complete {
		s.havePiece = false
		s.stats.Counter("pieces_completed").Inc(1)
		s.phase = StateWorkReady
	}
	return nil
}

func (s *Session) workReady() error {
	idx, ok := s.state.Scheduler().Take()
	if !ok {
		s.phase = StateDone
		return nil
	}
	s.currentPiece = idx
	s.havePiece = true
	if err := s.issueBlockRequests(idx); err != nil {
		return err
	}
	s.phase = StateDownloading
	return nil
}

// fail closes the session, requeuing any assigned piece, and returns err.
func (s *Session) fail(err error) error {
	if s.havePiece {
		s.state.Scheduler().Requeue(s.currentPiece)
		s.havePiece = false
	}
	s.logger.Infof("Session with %s failed, closing: %s", s.addr, err)
	return err
}

func (s *Session) close() {
	if !s.closed.CAS(false, true) {
		return
	}
	if s.nc != nil {
		s.nc.Close()
	}
}

// Close forcibly tears down the session's connection from outside the
// Run loop, unblocking whatever read or write is currently in flight. Used
// by the driver to cancel sibling sessions once all work has been retired;
// the blocked Run call returns an error, which the caller discards.
func (s *Session) Close() {
	s.close()
}

