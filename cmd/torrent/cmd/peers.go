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

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/tracker"
	"github.com/kraken-torrent/swarm/utils/log"

	"github.com/spf13/cobra"
)

// clientPort is advertised to the tracker as the port the local peer could
// be reached on. This client never listens for inbound connections, but the
// tracker protocol still requires a value.
const clientPort = 6881

var peersCmd = &cobra.Command{
	Use:   "peers <file>",
	Short: "announce to a metainfo file's tracker and print the peer list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mi := parseMetainfoFileOrDie(args[0])
		printPeersOrDie(mi.Announce, mi.Info.InfoHash(), mi.Info.Length)
	},
}

var magnetPeersCmd = &cobra.Command{
	Use:   "magnet-peers <magnet-uri>",
	Short: "announce to a magnet link's tracker and print the peer list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m := parseMagnetOrDie(args[0])
		// left is unknown until the descriptor is fetched; announce a
		// conservative non-zero value so trackers that reject "left=0" from
		// a peer that hasn't finished still respond.
		printPeersOrDie(m.Announce, m.InfoHash, 1)
	},
}

func init() {
	rootCmd.AddCommand(peersCmd, magnetPeersCmd)
}

func printPeersOrDie(announceURL string, infoHash core.InfoHash, left int64) {
	config, _, _ := setup()
	localPeerID, err := core.RandomPeerID()
	if err != nil {
		log.Fatalf("Failed to generate peer id: %s", err)
	}

	client := tracker.New(config.Tracker)
	peers, err := client.Announce(announceURL, infoHash, localPeerID, 0, 0, left, clientPort)
	if err != nil {
		log.Fatalf("Announce failed: %s", err)
	}
	for _, p := range peers {
		fmt.Println(p)
	}
}
