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

// Package bencode implements the structural codec used by torrent metainfo
// files and by the ut_metadata extension protocol: a tagged variant with four
// shapes (signed integer, byte string, list, dictionary keyed by byte
// string). Unlike a reflection-driven marshaler, Decode is position-returning
// so that callers can decode one value out of a larger buffer and then
// consume the remaining raw bytes themselves -- exactly what the metadata
// extension needs, since an ut_metadata "data" message is a canonical dict
// immediately followed by a raw metadata chunk, not a second bencode value.
package bencode

// Kind enumerates the four bencode productions.
type Kind int

// The four bencode value shapes.
const (
	KindInt Kind = iota
	KindBytes
	KindList
	KindDict
)

// Value is a tagged bencode value.
type Value struct {
	kind Kind
	i    int64
	b    []byte
	list []Value
	dict map[string]Value
}

// Int returns a bencode integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Bytes returns a bencode byte-string value.
func Bytes(b []byte) Value { return Value{kind: KindBytes, b: b} }

// String returns a bencode byte-string value built from a Go string.
func String(s string) Value { return Value{kind: KindBytes, b: []byte(s)} }

// List returns a bencode list value.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Dict returns a bencode dictionary value.
func Dict(m map[string]Value) Value { return Value{kind: KindDict, dict: m} }

// Kind returns the shape of v.
func (v Value) Kind() Kind { return v.kind }

// Int returns v's integer value, or ok=false if v is not an integer.
func (v Value) Int() (n int64, ok bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Bytes returns v's raw byte-string value, or ok=false if v is not a byte string.
func (v Value) Bytes() (b []byte, ok bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.b, true
}

// Str returns v's byte-string value converted to a Go string.
func (v Value) Str() (s string, ok bool) {
	b, ok := v.Bytes()
	if !ok {
		return "", false
	}
	return string(b), true
}

// List returns v's elements, or ok=false if v is not a list.
func (v Value) List() (items []Value, ok bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Dict returns v's key/value pairs, or ok=false if v is not a dictionary.
func (v Value) Dict() (m map[string]Value, ok bool) {
	if v.kind != KindDict {
		return nil, false
	}
	return v.dict, true
}

// Get looks up key in v, assuming v is a dictionary. Returns ok=false if v is
// not a dictionary or key is absent.
func (v Value) Get(key string) (Value, bool) {
	d, ok := v.Dict()
	if !ok {
		return Value{}, false
	}
	vv, ok := d[key]
	return vv, ok
}
