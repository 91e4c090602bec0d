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

// Package swarm orchestrates a download end to end: given a peer address
// list and a swarmstate.State that may or may not already carry a
// descriptor, it bootstraps the descriptor over the metadata extension if
// necessary, then spawns one independent session per peer address, all
// draining the same shared scheduler until every piece is retired.
package swarm

import (
	"errors"
	"sync"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/peer"
	"github.com/kraken-torrent/swarm/lib/swarmstate"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// ErrNoPeers is returned when the peer list is empty.
var ErrNoPeers = errors.New("swarm: no peers")

// ErrNoMetadata is returned when every candidate peer failed to deliver the
// descriptor during magnet-only bootstrap.
var ErrNoMetadata = errors.New("swarm: exhausted peer list without obtaining metadata")

// ErrIncomplete is returned when every session has exited but pieces
// remain unassigned or in flight.
var ErrIncomplete = errors.New("swarm: no peers / incomplete")

// Driver coordinates a swarm download: descriptor bootstrap (if needed),
// then fan-out of one session per peer address against the shared
// scheduler.
type Driver struct {
	config      Config
	localPeerID core.PeerID
	infoHash    core.InfoHash
	state       *swarmstate.State
	stats       tally.Scope
	logger      *zap.SugaredLogger
	clk         clock.Clock

	mu       sync.Mutex
	sessions map[*peer.Session]struct{}
}

// New creates a Driver for infoHash, coordinating peer sessions against
// state. state may already carry a descriptor (a metainfo file was parsed
// upfront) or may still need one installed via magnet-only bootstrap.
func New(
	localPeerID core.PeerID,
	infoHash core.InfoHash,
	state *swarmstate.State,
	config Config,
	stats tally.Scope,
	logger *zap.SugaredLogger) *Driver {

	return &Driver{
		config:      config.applyDefaults(),
		localPeerID: localPeerID,
		infoHash:    infoHash,
		state:       state,
		stats:       stats.Tagged(map[string]string{"module": "swarm"}),
		logger:      logger,
		clk:         clock.New(),
		sessions:    make(map[*peer.Session]struct{}),
	}
}

// Download bootstraps the descriptor if state does not already have one,
// then drives one session per peer address to completion, each draining
// pieces from the shared scheduler until none remain. Returns nil once the
// scheduler reports every piece retired; ErrIncomplete if every session
// exited with work still outstanding.
func (d *Driver) Download(peers []string) error {
	if len(peers) == 0 {
		return ErrNoPeers
	}

	if d.state.Descriptor() == nil {
		if err := d.bootstrapMetadata(peers); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	for _, addr := range peers {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			d.runSessionLoop(addr)
			// Once any loop observes all work retired, unblock siblings
			// still parked on a read from a silent peer.
			if d.state.Scheduler().Done() {
				d.CloseAll()
			}
		}(addr)
	}
	wg.Wait()

	if !d.state.Scheduler().Done() {
		d.logger.Warnf("Download finished with %d pieces still outstanding",
			d.state.Scheduler().NumAvailable()+d.state.Scheduler().NumInFlight())
		return ErrIncomplete
	}
	return nil
}

// BootstrapMetadata performs magnet-only descriptor bootstrap against peers
// without starting regular piece downloading: useful for callers that only
// need the descriptor itself (e.g. a CLI's magnet-info-style command) rather
// than a full Download call.
func (d *Driver) BootstrapMetadata(peers []string) error {
	if len(peers) == 0 {
		return ErrNoPeers
	}
	return d.bootstrapMetadata(peers)
}

// bootstrapMetadata tries each peer in turn, performing a metadata-only
// handshake, until one installs a descriptor into state or the list is
// exhausted.
func (d *Driver) bootstrapMetadata(peers []string) error {
	for _, addr := range peers {
		sess, err := peer.NewSession(
			d.localPeerID, d.infoHash, addr, d.state, true, d.config.Peer, d.stats, d.logger)
		if err != nil {
			continue
		}
		d.track(sess)
		err = sess.Run()
		d.untrack(sess)
		if err != nil {
			d.logger.Infof("metadata bootstrap via %s failed: %s", addr, err)
			continue
		}
		if d.state.Descriptor() != nil {
			return nil
		}
	}
	return ErrNoMetadata
}

// runSessionLoop repeatedly opens a fresh session against addr for as long
// as the scheduler still has work, stopping after MaxSessionFailures
// consecutive failures from that address.
func (d *Driver) runSessionLoop(addr string) {
	failures := 0
	for !d.state.Scheduler().Done() {
		sess, err := peer.NewSession(
			d.localPeerID, d.infoHash, addr, d.state, false, d.config.Peer, d.stats, d.logger)
		if err != nil {
			return
		}
		d.track(sess)
		err = sess.Run()
		d.untrack(sess)

		if err != nil {
			failures++
			d.stats.Counter("session_failures").Inc(1)
			if failures >= d.config.MaxSessionFailures {
				d.logger.Warnf("giving up on peer %s after %d failures", addr, failures)
				return
			}
			d.clk.Sleep(d.config.RetryBackoff)
			continue
		}
		failures = 0
	}
}

func (d *Driver) track(s *peer.Session) {
	d.mu.Lock()
	d.sessions[s] = struct{}{}
	d.mu.Unlock()
}

func (d *Driver) untrack(s *peer.Session) {
	d.mu.Lock()
	delete(d.sessions, s)
	d.mu.Unlock()
}

// CloseAll forcibly closes every currently-running session, unblocking any
// in-flight read or write. Download calls it to cancel the remaining sibling
// sessions once the scheduler reports every piece retired.
func (d *Driver) CloseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.sessions {
		s.Close()
	}
}
