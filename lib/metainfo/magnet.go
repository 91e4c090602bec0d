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
package metainfo

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kraken-torrent/swarm/core"
)

// Magnet is an already-parsed magnet URI: the three fields the core
// consumes, regardless of how many other query parameters a real-world
// magnet link carries.
type Magnet struct {
	InfoHash core.InfoHash
	Announce string
	// DisplayName is the optional "dn" hint. It is never used internally --
	// only surfaced to the caller, e.g. for CLI output.
	DisplayName string
}

const magnetPrefix = "magnet:?"

// ParseMagnet parses a "magnet:?xt=urn:btih:<40-hex-chars>&dn=<name>&tr=<url>"
// URI into its three consumed fields. Only the "btih" (BitTorrent info-hash)
// urn namespace is supported.
func ParseMagnet(uri string) (*Magnet, error) {
	if !strings.HasPrefix(uri, magnetPrefix) {
		return nil, fmt.Errorf("parsing magnet uri: missing %q prefix", magnetPrefix)
	}
	q, err := url.ParseQuery(uri[len(magnetPrefix):])
	if err != nil {
		return nil, fmt.Errorf("parsing magnet uri query: %s", err)
	}

	xt := q.Get("xt")
	const urnPrefix = "urn:btih:"
	if !strings.HasPrefix(xt, urnPrefix) {
		return nil, fmt.Errorf("parsing magnet uri: \"xt\" missing %q prefix", urnPrefix)
	}
	infoHash, err := core.NewInfoHashFromHex(xt[len(urnPrefix):])
	if err != nil {
		return nil, fmt.Errorf("parsing magnet uri info-hash: %s", err)
	}

	return &Magnet{
		InfoHash:    infoHash,
		Announce:    q.Get("tr"),
		DisplayName: q.Get("dn"),
	}, nil
}
