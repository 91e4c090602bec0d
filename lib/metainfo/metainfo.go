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

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/bencode"
)

// MetaInfo is the parsed top-level mapping of a .torrent file: an announce
// URL plus the descriptor it advertises.
type MetaInfo struct {
	Announce string
	Info     *TorrentInfo
	InfoHash core.InfoHash
}

// Parse decodes a full metainfo file: a top-level mapping with "announce"
// (tracker URL) and "info" (the descriptor sub-mapping, see ParseDescriptor).
func Parse(data []byte) (*MetaInfo, error) {
	n, v, err := bencode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding metainfo: %s", err)
	}
	_ = n // surplus trailing bytes are not an error at the codec level

	d, ok := v.Dict()
	if !ok {
		return nil, fmt.Errorf("decoding metainfo: expected a top-level dictionary")
	}

	announce, ok := get(d, "announce").Str()
	if !ok {
		return nil, fmt.Errorf("decoding metainfo: missing or invalid \"announce\"")
	}

	infoValue, ok := d["info"]
	if !ok {
		return nil, fmt.Errorf("decoding metainfo: missing \"info\"")
	}
	info, err := torrentInfoFromValue(infoValue)
	if err != nil {
		return nil, fmt.Errorf("decoding metainfo info dict: %s", err)
	}

	return &MetaInfo{
		Announce: announce,
		Info:     info,
		InfoHash: info.InfoHash(),
	}, nil
}

// ParseDescriptor decodes a bare descriptor mapping, as delivered by the
// ut_metadata extension, and computes its info-hash over its canonical
// re-encoding.
func ParseDescriptor(data []byte) (*TorrentInfo, core.InfoHash, error) {
	_, v, err := bencode.Decode(data)
	if err != nil {
		return nil, core.InfoHash{}, fmt.Errorf("decoding descriptor: %s", err)
	}
	info, err := torrentInfoFromValue(v)
	if err != nil {
		return nil, core.InfoHash{}, err
	}
	return info, info.InfoHash(), nil
}
