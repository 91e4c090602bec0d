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

// Package assembler issues block requests for a piece, reassembles
// arbitrary-order responses, verifies the 20-byte digest, and writes
// verified pieces to the output file at the correct offset.
//
// Blocks are indexed by their begin offset rather than appended in arrival
// order, since a peer is free to answer block requests out of order.
package assembler

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/kraken-torrent/swarm/lib/piecescheduler"
)

// WriteOffset maps a piece index to the byte offset in the output file its
// verified bytes should be written at. Most callers use
// `func(i int) int64 { return int64(i) * pieceLength }`; a single-piece CLI
// invocation may instead always write at offset 0.
type WriteOffset func(piece int) int64

// BlockRequest is a single (index, begin, length) request to issue to a
// peer for a block of a piece.
type BlockRequest struct {
	Index  uint32
	Begin  uint32
	Length uint32
}

// pieceBuffer accumulates blocks for one in-flight piece, indexed by begin
// offset so that out-of-order arrivals still assemble correctly.
type pieceBuffer struct {
	blocks   map[uint32][]byte
	received int64
}

// Assembler composes blocks into verified, on-disk pieces.
type Assembler struct {
	info        *metainfo.TorrentInfo
	outputPath  string
	writeOffset WriteOffset
	scheduler   *piecescheduler.Scheduler
	config      Config

	mu      sync.Mutex
	buffers map[int]*pieceBuffer
}

// New creates an Assembler for info, writing verified pieces to outputPath
// and notifying scheduler of completion/requeue.
func New(
	info *metainfo.TorrentInfo,
	outputPath string,
	writeOffset WriteOffset,
	scheduler *piecescheduler.Scheduler,
	config Config) *Assembler {

	return &Assembler{
		info:        info,
		outputPath:  outputPath,
		writeOffset: writeOffset,
		scheduler:   scheduler,
		config:      config.applyDefaults(),
		buffers:     make(map[int]*pieceBuffer),
	}
}

// MaxInFlight returns the configured pipeline depth.
func (a *Assembler) MaxInFlight() int {
	return a.config.MaxInFlight
}

// BlockRequests returns the ordered list of block requests needed to fetch
// piece i in full. The caller (a peer session) pipelines at most
// MaxInFlight of these at a time.
func (a *Assembler) BlockRequests(i int) []BlockRequest {
	size := a.info.PieceSize(i)

	var reqs []BlockRequest
	for begin := int64(0); begin < size; begin += BlockSize {
		length := int64(BlockSize)
		if remaining := size - begin; remaining < length {
			length = remaining
		}
		reqs = append(reqs, BlockRequest{
			Index:  uint32(i),
			Begin:  uint32(begin),
			Length: uint32(length),
		})
	}
	return reqs
}

// AddBlock records a received block for piece i. When the piece is fully
// received, it is verified against the expected digest: on match, written
// to the output file and reported complete to the scheduler; on mismatch,
// discarded and requeued. complete is true only on a successful, verified
// write.
func (a *Assembler) AddBlock(i int, begin uint32, block []byte) (complete bool, err error) {
	a.mu.Lock()
	buf, ok := a.buffers[i]
	if !ok {
		buf = &pieceBuffer{blocks: make(map[uint32][]byte)}
		a.buffers[i] = buf
	}
	if _, dup := buf.blocks[begin]; !dup {
		buf.blocks[begin] = block
		buf.received += int64(len(block))
	}
	size := a.info.PieceSize(i)
	ready := buf.received >= size
	a.mu.Unlock()

	if !ready {
		return false, nil
	}
	return a.finishPiece(i, buf, size)
}

func (a *Assembler) finishPiece(i int, buf *pieceBuffer, size int64) (bool, error) {
	data := buf.assemble(size)

	digest := sha1.Sum(data)
	if digest != a.info.Pieces[i] {
		a.mu.Lock()
		delete(a.buffers, i)
		a.mu.Unlock()
		a.scheduler.Requeue(i)
		return false, fmt.Errorf("piece %d failed digest verification", i)
	}

	if err := a.writePiece(i, data); err != nil {
		a.mu.Lock()
		delete(a.buffers, i)
		a.mu.Unlock()
		a.scheduler.Requeue(i)
		return false, fmt.Errorf("writing piece %d: %s", i, err)
	}

	a.mu.Lock()
	delete(a.buffers, i)
	a.mu.Unlock()
	a.scheduler.Complete(i)
	return true, nil
}

// assemble concatenates buf's blocks in offset order into a contiguous
// piece of the given size.
func (b *pieceBuffer) assemble(size int64) []byte {
	offsets := make([]uint32, 0, len(b.blocks))
	for begin := range b.blocks {
		offsets = append(offsets, begin)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	data := make([]byte, 0, size)
	for _, begin := range offsets {
		data = append(data, b.blocks[begin]...)
	}
	return data
}

// writePiece opens the output file in read-write-create mode, seeks to the
// piece's target offset, writes the full piece, and flushes before
// returning.
func (a *Assembler) writePiece(i int, data []byte) error {
	f, err := os.OpenFile(a.outputPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open: %s", err)
	}
	defer f.Close()

	offset := a.writeOffset(i)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %s", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write: %s", err)
	}
	return f.Sync()
}
