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
package cmd

import (
	"fmt"
	"net"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/wire"
	"github.com/kraken-torrent/swarm/utils/log"

	"github.com/spf13/cobra"
)

var handshakeCmd = &cobra.Command{
	Use:   "handshake <file> <peer-addr>",
	Short: "perform the wire handshake against a single peer and print its peer id",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mi := parseMetainfoFileOrDie(args[0])
		doHandshakeOrDie(mi.Info.InfoHash(), args[1], false)
	},
}

var magnetHandshakeCmd = &cobra.Command{
	Use:   "magnet-handshake <magnet-uri> <peer-addr>",
	Short: "perform the extended wire handshake against a single peer and print its peer id",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		m := parseMagnetOrDie(args[0])
		doHandshakeOrDie(m.InfoHash, args[1], true)
	},
}

func init() {
	rootCmd.AddCommand(handshakeCmd, magnetHandshakeCmd)
}

func doHandshakeOrDie(infoHash core.InfoHash, addr string, extensions bool) {
	localPeerID, err := core.RandomPeerID()
	if err != nil {
		log.Fatalf("Failed to generate peer id: %s", err)
	}

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %s", addr, err)
	}
	defer nc.Close()

	if err := wire.WriteHandshake(nc, wire.Handshake{
		InfoHash: infoHash, PeerID: localPeerID, Extensions: extensions,
	}); err != nil {
		log.Fatalf("Failed to send handshake: %s", err)
	}
	remote, err := wire.ReadHandshake(nc, infoHash)
	if err != nil {
		log.Fatalf("Failed to read handshake: %s", err)
	}

	fmt.Printf("Peer ID: %s\n", remote.PeerID)
}
