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

// Package swarmstate holds the descriptor, assembler, and scheduler shared
// by reference across every peer session in a download. It exists as its
// own package, rather than living on the driver or the session, so that
// both lib/peer and lib/swarm can depend on it without an import cycle:
// a session may be the one to install it (magnet-only boot, via metadata
// exchange) while the driver is the one that normally constructs it upfront.
package swarmstate

import (
	"sync"

	"github.com/kraken-torrent/swarm/lib/assembler"
	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/kraken-torrent/swarm/lib/piecescheduler"
)

// State is the descriptor, assembler, and scheduler for one torrent
// download, installed either immediately (a metainfo file was parsed
// upfront) or later (descriptor obtained via metadata exchange). The
// descriptor is immutable after installation and may be shared freely; the
// scheduler is the only mutable shared object and guards itself internally.
type State struct {
	mu    sync.RWMutex
	once  sync.Once
	ready chan struct{}

	outputPath  string
	writeOffset assembler.WriteOffset
	config      assembler.Config

	descriptor *metainfo.TorrentInfo
	scheduler  *piecescheduler.Scheduler
	assembler  *assembler.Assembler
}

// New returns an uninstalled State bound to the given output destination:
// Descriptor/Scheduler/Assembler return nil until Install supplies the
// descriptor, and Ready does not close until then. outputPath and
// writeOffset are fixed at construction because they are a property of the
// download as a whole, not of whichever peer happens to deliver the
// descriptor first.
func New(outputPath string, writeOffset assembler.WriteOffset, config assembler.Config) *State {
	return &State{
		ready:       make(chan struct{}),
		outputPath:  outputPath,
		writeOffset: writeOffset,
		config:      config,
	}
}

// NewInstalled returns a State already installed with info, as when a
// metainfo file was parsed upfront rather than obtained via the swarm.
func NewInstalled(
	info *metainfo.TorrentInfo,
	outputPath string,
	writeOffset assembler.WriteOffset,
	config assembler.Config) *State {

	s := New(outputPath, writeOffset, config)
	s.Install(info)
	return s
}

// NewInstalledSubset returns a State already installed with info, but with
// the scheduler seeded with only the given piece indices rather than the
// full 0..NumPieces()-1 range. Used by callers that want a single piece
// (or any other subset) rather than the whole torrent.
func NewInstalledSubset(
	info *metainfo.TorrentInfo,
	indices []int,
	outputPath string,
	writeOffset assembler.WriteOffset,
	config assembler.Config) *State {

	s := New(outputPath, writeOffset, config)
	s.installSubset(info, indices)
	return s
}

// Install seeds the scheduler with every piece in info and constructs the
// assembler. Only the first call (across Install and NewInstalledSubset) has
// any effect; subsequent calls are no-ops, since the descriptor is immutable
// for the lifetime of a download.
func (s *State) Install(info *metainfo.TorrentInfo) {
	indices := make([]int, info.NumPieces())
	for i := range indices {
		indices[i] = i
	}
	s.installSubset(info, indices)
}

func (s *State) installSubset(info *metainfo.TorrentInfo, indices []int) {
	s.once.Do(func() {
		sched := piecescheduler.New(indices)
		asm := assembler.New(info, s.outputPath, s.writeOffset, sched, s.config)

		s.mu.Lock()
		s.descriptor = info
		s.scheduler = sched
		s.assembler = asm
		s.mu.Unlock()

		close(s.ready)
	})
}

// Ready returns a channel that closes once Install has run.
func (s *State) Ready() <-chan struct{} {
	return s.ready
}

// Descriptor returns the installed descriptor, or nil if not yet installed.
func (s *State) Descriptor() *metainfo.TorrentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descriptor
}

// Scheduler returns the installed scheduler, or nil if not yet installed.
func (s *State) Scheduler() *piecescheduler.Scheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

// Assembler returns the installed assembler, or nil if not yet installed.
func (s *State) Assembler() *assembler.Assembler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assembler
}
