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

// Package core holds the two fixed-size identity values the wire protocol
// is built around: the info-hash that names a swarm and the peer id that
// names a participant.
package core

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// InfoHash is the 20-byte SHA-1 digest of a torrent descriptor's canonical
// encoding. It identifies the swarm: both ends of every handshake must
// present the same value, and metadata fetched from a peer is only trusted
// if it hashes back to it.
type InfoHash [20]byte

// NewInfoHashFromHex parses the 40-character hex form of an info-hash, as
// it appears in a magnet URI's "xt" field.
func NewInfoHashFromHex(s string) (InfoHash, error) {
	if len(s) != 40 {
		return InfoHash{}, fmt.Errorf("invalid hash: expected 40 characters, got %d", len(s))
	}
	var h InfoHash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return InfoHash{}, fmt.Errorf("invalid hex: %s", err)
	}
	return h, nil
}

// NewInfoHashFromBytes digests the canonical descriptor encoding b into an
// InfoHash.
func NewInfoHashFromBytes(b []byte) InfoHash {
	return InfoHash(sha1.Sum(b))
}

// Bytes returns the raw 20 bytes of h, as placed in a handshake.
func (h InfoHash) Bytes() []byte {
	return h[:]
}

// Hex returns the 40-character hex form of h.
func (h InfoHash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h InfoHash) String() string {
	return h.Hex()
}
