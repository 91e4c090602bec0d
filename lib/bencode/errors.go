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

import "fmt"

// UnexpectedEndError is returned when the input ends before a value is fully
// decoded.
type UnexpectedEndError struct{}

func (e UnexpectedEndError) Error() string {
	return "unexpected end of bencode input"
}

// InvalidFormatError is returned when a byte is encountered where no
// production of the grammar can match.
type InvalidFormatError struct {
	Where string
}

func (e InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid bencode format: %s", e.Where)
}

// InvalidIntegerError is returned when an integer literal violates the
// canonical form (leading zeros or "-0"), is empty or non-numeric, or does
// not fit in a signed 64-bit integer. A literal with no terminating 'e'
// runs off the end of the input and yields UnexpectedEndError instead.
type InvalidIntegerError struct {
	Literal string
}

func (e InvalidIntegerError) Error() string {
	return fmt.Sprintf("invalid bencode integer literal: %q", e.Literal)
}
