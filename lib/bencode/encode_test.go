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
package bencode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeInt(t *testing.T) {
	require.Equal(t, "i0e", string(Encode(Int(0))))
	require.Equal(t, "i-1e", string(Encode(Int(-1))))
	require.Equal(t, "i42e", string(Encode(Int(42))))
}

func TestEncodeBytes(t *testing.T) {
	require.Equal(t, "4:spam", string(Encode(String("spam"))))
	require.Equal(t, "0:", string(Encode(Bytes(nil))))
}

func TestEncodeList(t *testing.T) {
	require.Equal(t, "l4:spam4:eggse", string(Encode(List(String("spam"), String("eggs")))))
}

func TestEncodeDictIsCanonicallySortedByKey(t *testing.T) {
	// Keys are sorted byte-wise ascending regardless of construction order,
	// so info-hash computation is stable no matter how the dict was built.
	v := Dict(map[string]Value{
		"foo": Int(42),
		"bar": String("spam"),
	})
	require.Equal(t, "d3:bar4:spam3:fooi42ee", string(Encode(v)))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	require := require.New(t)

	orig := Dict(map[string]Value{
		"name":   String("sample.txt"),
		"length": Int(1024),
		"list":   List(Int(1), Int(2), String("three")),
	})

	encoded := Encode(orig)
	n, decoded, err := Decode(encoded)
	require.NoError(err)
	require.Equal(len(encoded), n)

	// Re-encoding the decoded value must reproduce the same canonical bytes.
	require.Equal(encoded, Encode(decoded))
}

func TestEncodeNestedDictCanonicalOrder(t *testing.T) {
	inner := Dict(map[string]Value{
		"z": Int(1),
		"a": Int(2),
	})
	outer := Dict(map[string]Value{
		"info": inner,
		"announce": String("http://tracker.example/announce"),
	})
	require.Equal(t,
		"d8:announce31:http://tracker.example/announce4:infod1:ai2e1:zi1eee",
		string(Encode(outer)))
}
