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
	"bytes"
	"sort"
	"strconv"
)

// Encode serializes v into its canonical bencode form: dictionary keys are
// sorted byte-wise ascending, matching the encoding that info-hash
// computation must reproduce exactly.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encodeValue(&buf, v)
	return buf.Bytes()
}

func encodeValue(buf *bytes.Buffer, v Value) {
	switch v.Kind() {
	case KindInt:
		n, _ := v.Int()
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(n, 10))
		buf.WriteByte('e')
	case KindBytes:
		b, _ := v.Bytes()
		buf.WriteString(strconv.Itoa(len(b)))
		buf.WriteByte(':')
		buf.Write(b)
	case KindList:
		items, _ := v.List()
		buf.WriteByte('l')
		for _, item := range items {
			encodeValue(buf, item)
		}
		buf.WriteByte('e')
	case KindDict:
		m, _ := v.Dict()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('d')
		for _, k := range keys {
			encodeValue(buf, String(k))
			encodeValue(buf, m[k])
		}
		buf.WriteByte('e')
	}
}
