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

// Package metainfo provides a typed view of a single-file torrent
// descriptor and the info-hash that identifies a swarm, built on top of
// lib/bencode's structural codec rather than a reflection-based marshaler --
// the descriptor's canonical re-encoding has to be bit-for-bit exact, which
// a struct-tag marshaler does not guarantee without care.
package metainfo

import (
	"fmt"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/bencode"
)

const pieceHashLength = 20

// TorrentInfo is the typed descriptor for a single-file torrent: the `info`
// sub-mapping of a metainfo file, or the bare mapping reconstructed via
// metadata exchange.
type TorrentInfo struct {
	Name        string
	Length      int64
	PieceLength int64
	Pieces      [][pieceHashLength]byte
}

// NumPieces returns the number of pieces in the torrent.
func (t *TorrentInfo) NumPieces() int {
	return len(t.Pieces)
}

// PieceSize returns the number of bytes in piece i: PieceLength for every
// piece but the last, and the remainder for the last piece.
func (t *TorrentInfo) PieceSize(i int) int64 {
	if i == len(t.Pieces)-1 {
		return t.Length - int64(i)*t.PieceLength
	}
	return t.PieceLength
}

// Value re-encodes t as the canonical bencode mapping it was derived from.
// Used both to compute the info-hash and to serialize a metainfo file.
func (t *TorrentInfo) Value() bencode.Value {
	pieces := make([]byte, 0, len(t.Pieces)*pieceHashLength)
	for _, p := range t.Pieces {
		pieces = append(pieces, p[:]...)
	}
	return bencode.Dict(map[string]bencode.Value{
		"name":         bencode.String(t.Name),
		"length":       bencode.Int(t.Length),
		"piece length": bencode.Int(t.PieceLength),
		"pieces":       bencode.Bytes(pieces),
	})
}

// InfoHash computes the swarm identity: SHA-1 over the canonical bencode
// encoding of t's descriptor mapping.
func (t *TorrentInfo) InfoHash() core.InfoHash {
	return core.NewInfoHashFromBytes(bencode.Encode(t.Value()))
}

// torrentInfoFromValue builds a TorrentInfo from an already-decoded bencode
// dictionary value, validating the required keys and types per the
// descriptor model.
func torrentInfoFromValue(v bencode.Value) (*TorrentInfo, error) {
	d, ok := v.Dict()
	if !ok {
		return nil, fmt.Errorf("decoding descriptor: expected a dictionary")
	}

	name, ok := get(d, "name").Str()
	if !ok {
		return nil, fmt.Errorf("decoding descriptor: missing or invalid \"name\"")
	}
	length, ok := get(d, "length").Int()
	if !ok {
		return nil, fmt.Errorf("decoding descriptor: missing or invalid \"length\"")
	}
	pieceLength, ok := get(d, "piece length").Int()
	if !ok {
		return nil, fmt.Errorf("decoding descriptor: missing or invalid \"piece length\"")
	}
	if pieceLength <= 0 {
		return nil, fmt.Errorf("decoding descriptor: \"piece length\" must be positive")
	}
	if length < 0 {
		return nil, fmt.Errorf("decoding descriptor: \"length\" must be non-negative")
	}
	raw, ok := get(d, "pieces").Bytes()
	if !ok {
		return nil, fmt.Errorf("decoding descriptor: missing or invalid \"pieces\"")
	}
	if len(raw)%pieceHashLength != 0 {
		return nil, fmt.Errorf("decoding descriptor: \"pieces\" length %d is not a multiple of %d", len(raw), pieceHashLength)
	}

	pieces := make([][pieceHashLength]byte, len(raw)/pieceHashLength)
	for i := range pieces {
		copy(pieces[i][:], raw[i*pieceHashLength:(i+1)*pieceHashLength])
	}

	return &TorrentInfo{
		Name:        name,
		Length:      length,
		PieceLength: pieceLength,
		Pieces:      pieces,
	}, nil
}

func get(d map[string]bencode.Value, key string) bencode.Value {
	return d[key]
}
