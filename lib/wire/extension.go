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
package wire

import (
	"fmt"

	"github.com/kraken-torrent/swarm/lib/bencode"
)

// ExtensionName is the name the ut_metadata extension registers itself
// under in an extension handshake's "m" mapping.
const ExtensionName = "ut_metadata"

// LocalMetadataExtensionID is the numeric id this core always advertises for
// ut_metadata in its own extension handshake.
const LocalMetadataExtensionID = 20

// Metadata message types, carried as the "msg_type" key of a metadata
// extension message.
const (
	MetadataRequest = 0
	MetadataData    = 1
	MetadataReject  = 2
)

// ExtHandshakeID is the ext-id reserved for the extension handshake itself
// (message id 20 with this ext-id carries the "m" mapping).
const ExtHandshakeID = 0

// EncodeExtHandshake builds the payload of an extension handshake message:
// a canonical dict mapping extension names to locally-assigned numeric ids.
func EncodeExtHandshake(m map[string]int64) []byte {
	inner := make(map[string]bencode.Value, len(m))
	for name, id := range m {
		inner[name] = bencode.Int(id)
	}
	return bencode.Encode(bencode.Dict(map[string]bencode.Value{
		"m": bencode.Dict(inner),
	}))
}

// DecodeExtHandshake parses an extension handshake payload, returning the
// advertised extension-name -> id mapping.
func DecodeExtHandshake(payload []byte) (map[string]int64, error) {
	_, v, err := bencode.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding extension handshake: %s", err)
	}
	mVal, ok := v.Get("m")
	if !ok {
		return nil, fmt.Errorf("decoding extension handshake: missing \"m\"")
	}
	mDict, ok := mVal.Dict()
	if !ok {
		return nil, fmt.Errorf("decoding extension handshake: \"m\" is not a dictionary")
	}
	out := make(map[string]int64, len(mDict))
	for name, idVal := range mDict {
		id, ok := idVal.Int()
		if !ok {
			return nil, fmt.Errorf("decoding extension handshake: id for %q is not an integer", name)
		}
		out[name] = id
	}
	return out, nil
}

// EncodeMetadataRequest builds a {msg_type: request, piece: i} metadata
// extension message payload.
func EncodeMetadataRequest(piece int) []byte {
	return bencode.Encode(bencode.Dict(map[string]bencode.Value{
		"msg_type": bencode.Int(MetadataRequest),
		"piece":    bencode.Int(int64(piece)),
	}))
}

// EncodeMetadataData builds a {msg_type: data, piece: i, total_size: n}
// metadata extension message, followed immediately by the raw metadata
// chunk bytes -- the dict and the chunk are concatenated, not nested,
// matching how the extension frames a "data" message on the wire.
func EncodeMetadataData(piece int, totalSize int, chunk []byte) []byte {
	head := bencode.Encode(bencode.Dict(map[string]bencode.Value{
		"msg_type":   bencode.Int(MetadataData),
		"piece":      bencode.Int(int64(piece)),
		"total_size": bencode.Int(int64(totalSize)),
	}))
	return append(head, chunk...)
}

// MetadataMessage is a decoded metadata extension message.
type MetadataMessage struct {
	MsgType   int64
	Piece     int64
	TotalSize int64 // only meaningful when MsgType == MetadataData
	Chunk     []byte
}

// DecodeMetadataMessage decodes a metadata extension message payload: a
// canonical dict (msg_type, piece, and for data messages total_size),
// followed by the raw metadata chunk when MsgType == MetadataData.
func DecodeMetadataMessage(payload []byte) (*MetadataMessage, error) {
	n, v, err := bencode.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata message: %s", err)
	}
	msgType, ok := get(v, "msg_type").Int()
	if !ok {
		return nil, fmt.Errorf("decoding metadata message: missing or invalid \"msg_type\"")
	}
	piece, ok := get(v, "piece").Int()
	if !ok {
		return nil, fmt.Errorf("decoding metadata message: missing or invalid \"piece\"")
	}

	m := &MetadataMessage{MsgType: msgType, Piece: piece}
	if msgType == MetadataData {
		totalSize, ok := get(v, "total_size").Int()
		if !ok {
			return nil, fmt.Errorf("decoding metadata message: missing or invalid \"total_size\"")
		}
		m.TotalSize = totalSize
		m.Chunk = payload[n:]
	}
	return m, nil
}

func get(v bencode.Value, key string) bencode.Value {
	val, _ := v.Get(key)
	return val
}
