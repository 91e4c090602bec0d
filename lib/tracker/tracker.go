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

// Package tracker is the external collaborator that converts an announce
// URL plus request parameters into a peer list: an interface plus a
// concrete HTTP implementation, so cmd/torrent has something real to
// drive the swarm driver with.
package tracker

import (
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/bencode"
)

// Client announces to a tracker and returns the peers it advertises for a
// swarm: announce(url, info_hash, peer_id, uploaded, downloaded, left, port).
type Client interface {
	Announce(
		announceURL string,
		infoHash core.InfoHash,
		peerID core.PeerID,
		uploaded, downloaded, left int64,
		port int) ([]string, error)
}

// Config configures an HTTPClient.
type Config struct {
	Timeout time.Duration `yaml:"timeout"`
}

func (c Config) applyDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// HTTPClient announces over HTTP(S) and parses a compact (BEP 23) peer
// list out of the bencoded response, reusing lib/bencode rather than
// pulling in a second codec for this one response shape.
type HTTPClient struct {
	config Config
	http   *http.Client
}

// New creates an HTTPClient.
func New(config Config) *HTTPClient {
	config = config.applyDefaults()
	return &HTTPClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// Announce performs a single HTTP GET announce against announceURL and
// returns the peer address list it advertises.
func (c *HTTPClient) Announce(
	announceURL string,
	infoHash core.InfoHash,
	peerID core.PeerID,
	uploaded, downloaded, left int64,
	port int) ([]string, error) {

	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing announce url: %s", err)
	}
	q := u.Query()
	q.Set("info_hash", string(infoHash.Bytes()))
	q.Set("peer_id", string(peerID.Bytes()))
	q.Set("port", strconv.Itoa(port))
	q.Set("uploaded", strconv.FormatInt(uploaded, 10))
	q.Set("downloaded", strconv.FormatInt(downloaded, 10))
	q.Set("left", strconv.FormatInt(left, 10))
	q.Set("compact", "1")
	u.RawQuery = q.Encode()

	resp, err := c.http.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("announcing to %s: %s", announceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned status %s", resp.Status)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tracker response: %s", err)
	}

	return parseAnnounceResponse(body)
}

// parseAnnounceResponse decodes a bencoded tracker response and returns the
// peer list, supporting both the compact (BEP 23) byte-string form and the
// non-compact list-of-dicts form.
func parseAnnounceResponse(body []byte) ([]string, error) {
	_, v, err := bencode.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding tracker response: %s", err)
	}
	d, ok := v.Dict()
	if !ok {
		return nil, fmt.Errorf("decoding tracker response: expected a dictionary")
	}
	if reason, ok := d["failure reason"]; ok {
		if s, ok := reason.Str(); ok {
			return nil, fmt.Errorf("tracker failure: %s", s)
		}
		return nil, fmt.Errorf("tracker failure")
	}

	peersVal, ok := d["peers"]
	if !ok {
		return nil, fmt.Errorf("decoding tracker response: missing \"peers\"")
	}

	if compact, ok := peersVal.Bytes(); ok {
		return parseCompactPeers(compact)
	}
	if list, ok := peersVal.List(); ok {
		return parseDictPeers(list)
	}
	return nil, fmt.Errorf("decoding tracker response: \"peers\" has unexpected shape")
}

const compactPeerSize = 6 // 4-byte IPv4 address + 2-byte port

func parseCompactPeers(data []byte) ([]string, error) {
	if len(data)%compactPeerSize != 0 {
		return nil, fmt.Errorf("compact peer list length %d not a multiple of %d", len(data), compactPeerSize)
	}
	peers := make([]string, 0, len(data)/compactPeerSize)
	for i := 0; i < len(data); i += compactPeerSize {
		ip := net.IP(data[i : i+4])
		port := int(data[i+4])<<8 | int(data[i+5])
		peers = append(peers, net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	}
	return peers, nil
}

func parseDictPeers(list []bencode.Value) ([]string, error) {
	peers := make([]string, 0, len(list))
	for _, item := range list {
		d, ok := item.Dict()
		if !ok {
			continue
		}
		ip, ok := d["ip"].Str()
		if !ok {
			continue
		}
		port, ok := d["port"].Int()
		if !ok {
			continue
		}
		peers = append(peers, net.JoinHostPort(ip, strconv.FormatInt(port, 10)))
	}
	return peers, nil
}
