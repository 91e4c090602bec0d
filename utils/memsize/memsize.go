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

// Package memsize provides byte-count and bit-rate constants and
// human-readable formatting, used to render bandwidth limiter configuration
// in log lines and error messages.
package memsize

import "fmt"

// Byte-count units, binary (1024-based), used for on-disk / in-memory
// sizes such as piece and block lengths.
const (
	B  uint64 = 1
	KB        = B * 1024
	MB        = KB * 1024
	GB        = MB * 1024
	TB        = GB * 1024
)

// Bit-rate units, decimal (1000-based), used for bandwidth limits.
const (
	Bit  uint64 = 1
	Kbit        = Bit * 1000
	Mbit        = Kbit * 1000
	Gbit        = Mbit * 1000
	Tbit        = Gbit * 1000
)

// Format renders a byte count in the largest unit that keeps the value >= 1,
// e.g. Format(1536) == "1.50KB".
func Format(bytes uint64) string {
	return format(bytes, "B", TB, GB, MB, KB, B)
}

// BitFormat renders a bit count in the largest unit that keeps the value >=
// 1, e.g. BitFormat(1500) == "1.50Kbit".
func BitFormat(bits uint64) string {
	return format(bits, "bit", Tbit, Gbit, Mbit, Kbit, Bit)
}

func format(n uint64, suffix string, units ...uint64) string {
	if n == 0 {
		return fmt.Sprintf("0%s", suffix)
	}
	for _, u := range units {
		if n >= u {
			return fmt.Sprintf("%.2f%s%s", float64(n)/float64(u), unitPrefix(u, suffix), suffix)
		}
	}
	return fmt.Sprintf("%.2f%s", float64(n), suffix)
}

func unitPrefix(unit uint64, suffix string) string {
	switch suffix {
	case "B":
		switch unit {
		case TB:
			return "T"
		case GB:
			return "G"
		case MB:
			return "M"
		case KB:
			return "K"
		default:
			return ""
		}
	case "bit":
		switch unit {
		case Tbit:
			return "T"
		case Gbit:
			return "G"
		case Mbit:
			return "M"
		case Kbit:
			return "K"
		default:
			return ""
		}
	}
	return ""
}
