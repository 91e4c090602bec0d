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

// Package wire implements the BitTorrent v1 wire protocol: the fixed-shape
// handshake, length-prefixed message framing, and the ut_metadata extension
// sub-protocol nested under message id 20.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/kraken-torrent/swarm/core"
)

const (
	protocolName   = "BitTorrent protocol"
	handshakeLen   = 68
	extensionByte  = 25   // offset of the reserved byte carrying the extension bit
	extensionBit   = 0x10 // bit set within that byte when extensions are supported
)

// Handshake is the 68-byte greeting exchanged at the start of every peer
// connection.
type Handshake struct {
	InfoHash   core.InfoHash
	PeerID     core.PeerID
	Extensions bool
}

// Encode serializes h into its 68-byte wire form.
func (h Handshake) Encode() []byte {
	buf := make([]byte, handshakeLen)
	buf[0] = byte(len(protocolName))
	copy(buf[1:20], protocolName)
	// bytes 20:28 are reserved, already zero.
	if h.Extensions {
		buf[extensionByte] |= extensionBit
	}
	copy(buf[28:48], h.InfoHash.Bytes())
	copy(buf[48:68], h.PeerID.Bytes())
	return buf
}

// DecodeHandshake validates and parses a 68-byte handshake. expected is the
// info-hash the local session expects; a mismatch is a fatal protocol error.
func DecodeHandshake(b []byte, expected core.InfoHash) (Handshake, error) {
	if len(b) != handshakeLen {
		return Handshake{}, fmt.Errorf("handshake: expected %d bytes, got %d", handshakeLen, len(b))
	}
	if int(b[0]) != len(protocolName) {
		return Handshake{}, fmt.Errorf("handshake: invalid protocol name length %d", b[0])
	}
	if string(b[1:20]) != protocolName {
		return Handshake{}, fmt.Errorf("handshake: invalid protocol name %q", b[1:20])
	}

	var infoHash core.InfoHash
	copy(infoHash[:], b[28:48])
	if !bytes.Equal(infoHash.Bytes(), expected.Bytes()) {
		return Handshake{}, fmt.Errorf("handshake: info hash mismatch: got %s, want %s", infoHash, expected)
	}

	var peerID core.PeerID
	copy(peerID[:], b[48:68])

	return Handshake{
		InfoHash:   infoHash,
		PeerID:     peerID,
		Extensions: b[extensionByte]&extensionBit != 0,
	}, nil
}

// ErrUnexpectedEOF is returned when a peer closes its connection mid-read.
var ErrUnexpectedEOF = errors.New("wire: unexpected EOF reading from peer")

// WriteHandshake writes h's 68-byte encoding to w.
func WriteHandshake(w io.Writer, h Handshake) error {
	_, err := w.Write(h.Encode())
	return err
}

// ReadHandshake reads and validates a 68-byte handshake from r.
func ReadHandshake(r io.Reader, expected core.InfoHash) (Handshake, error) {
	buf := make([]byte, handshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return Handshake{}, ErrUnexpectedEOF
		}
		return Handshake{}, fmt.Errorf("read handshake: %s", err)
	}
	return DecodeHandshake(buf, expected)
}
