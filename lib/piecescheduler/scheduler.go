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

// Package piecescheduler hands out piece indices to concurrent peer
// sessions with at-most-one assignment per piece at a time. Unlike the
// rarest-first, multi-peer request bookkeeping this is descended from, a
// swarm session has no notion of "which peer has which piece" to rank by --
// every piece is fetched from whichever session asks for it next, so the
// scheduler only needs to guarantee mutual exclusion.
package piecescheduler

import (
	"sync"

	"github.com/willf/bitset"
)

// Scheduler distributes piece indices across concurrent sessions. available
// and inFlight partition the index set disjointly; a completed piece
// belongs to neither and is never revisited, and is recorded in completed
// for progress reporting.
type Scheduler struct {
	mu        sync.Mutex
	available []int
	inFlight  map[int]bool
	completed *bitset.BitSet
}

// New creates a Scheduler seeded with the given piece indices. A single-file
// single-piece torrent seeds with just that one index.
func New(indices []int) *Scheduler {
	available := make([]int, len(indices))
	copy(available, indices)
	return &Scheduler{
		available: available,
		inFlight:  make(map[int]bool),
		completed: bitset.New(0),
	}
}

// NewRange creates a Scheduler seeded with 0..numPieces-1.
func NewRange(numPieces int) *Scheduler {
	indices := make([]int, numPieces)
	for i := range indices {
		indices[i] = i
	}
	return New(indices)
}

// Take pops the next available piece index and marks it in-flight. Returns
// ok=false if no piece is currently available.
func (s *Scheduler) Take() (index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.available) == 0 {
		return 0, false
	}
	index = s.available[0]
	s.available = s.available[1:]
	s.inFlight[index] = true
	return index, true
}

// Complete marks piece i as retired: it is removed from in-flight, never
// returned to available, and recorded in the completed-piece bitfield.
func (s *Scheduler) Complete(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, i)
	s.completed.Set(uint(i))
}

// Requeue removes piece i from in-flight and pushes it onto the back of
// available, so a subsequent Take can reassign it.
func (s *Scheduler) Requeue(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, i)
	s.available = append(s.available, i)
}

// Done reports whether every piece has been retired: both available and
// in-flight are empty.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.available) == 0 && len(s.inFlight) == 0
}

// NumAvailable returns the number of pieces currently waiting to be taken.
// Exposed for tests and diagnostics only.
func (s *Scheduler) NumAvailable() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.available)
}

// NumInFlight returns the number of pieces currently assigned to a session.
// Exposed for tests and diagnostics only.
func (s *Scheduler) NumInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.inFlight)
}

// NumCompleted returns the number of pieces retired via Complete so far.
func (s *Scheduler) NumCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int(s.completed.Count())
}

// Bitfield returns a snapshot of the completed-piece bitfield: bit i is set
// iff piece i has been verified and written. Used for progress reporting.
func (s *Scheduler) Bitfield() *bitset.BitSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.completed.Clone()
}
