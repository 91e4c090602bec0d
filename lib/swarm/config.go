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
package swarm

import (
	"time"

	"github.com/kraken-torrent/swarm/lib/peer"
)

// Config configures a Driver.
type Config struct {
	// MaxSessionFailures bounds how many times a single peer address may
	// fail (connect error, handshake mismatch, read/write error) before the
	// driver gives up dispatching further work to it.
	MaxSessionFailures int `yaml:"max_session_failures"`

	// RetryBackoff is how long runSessionLoop waits before redialing a peer
	// after a failed session, so a dead or slow peer is not hammered with
	// reconnect attempts back to back.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	Peer peer.Config `yaml:"peer"`
}

func (c Config) applyDefaults() Config {
	if c.MaxSessionFailures == 0 {
		c.MaxSessionFailures = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}
