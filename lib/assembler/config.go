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
package assembler

// BlockSize is the fixed size of a requested block, per the wire protocol.
const BlockSize = 16384

// Config configures an Assembler.
type Config struct {
	// MaxInFlight bounds how many block requests a session pipelines for a
	// single piece before waiting for responses, so a large final piece
	// can't flood a connection with requests all at once.
	MaxInFlight int `yaml:"max_in_flight"`
}

func (c Config) applyDefaults() Config {
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 5
	}
	return c
}
