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
	"strconv"

	"github.com/kraken-torrent/swarm/core"
	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/kraken-torrent/swarm/lib/swarm"
	"github.com/kraken-torrent/swarm/lib/swarmstate"
	"github.com/kraken-torrent/swarm/lib/tracker"
	"github.com/kraken-torrent/swarm/utils/log"

	"github.com/spf13/cobra"
)

var outputPath string

var downloadPieceCmd = &cobra.Command{
	Use:   "download-piece <file> <index>",
	Short: "download a single piece to -o and exit",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mi := parseMetainfoFileOrDie(args[0])
		index := parsePieceIndexOrDie(args[1], mi.Info.NumPieces())
		runDownload(mi.Announce, mi.Info, []int{index}, func(int) int64 { return 0 })
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <file>",
	Short: "download the full torrent to -o and exit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mi := parseMetainfoFileOrDie(args[0])
		runDownload(mi.Announce, mi.Info, nil, func(i int) int64 { return int64(i) * mi.Info.PieceLength })
	},
}

var magnetDownloadPieceCmd = &cobra.Command{
	Use:   "magnet-download-piece <magnet-uri> <index>",
	Short: "fetch metadata over the swarm, then download a single piece to -o and exit",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		m := parseMagnetOrDie(args[0])
		info := magnetBootstrapOrDie(m)
		index := parsePieceIndexOrDie(args[1], info.NumPieces())
		runDownload(m.Announce, info, []int{index}, func(int) int64 { return 0 })
	},
}

var magnetDownloadCmd = &cobra.Command{
	Use:   "magnet-download <magnet-uri>",
	Short: "fetch metadata over the swarm, then download the full torrent to -o and exit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m := parseMagnetOrDie(args[0])
		info := magnetBootstrapOrDie(m)
		runDownload(m.Announce, info, nil, func(i int) int64 { return int64(i) * info.PieceLength })
	},
}

func init() {
	for _, c := range []*cobra.Command{downloadPieceCmd, downloadCmd, magnetDownloadPieceCmd, magnetDownloadCmd} {
		c.Flags().StringVarP(&outputPath, "out", "o", "", "output file path (required)")
		c.MarkFlagRequired("out")
	}
	rootCmd.AddCommand(downloadPieceCmd, downloadCmd, magnetDownloadPieceCmd, magnetDownloadCmd)
}

func parsePieceIndexOrDie(s string, numPieces int) int {
	index, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("Invalid piece index %q: %s", s, err)
	}
	if index < 0 || index >= numPieces {
		log.Fatalf("Piece index %d out of range [0, %d)", index, numPieces)
	}
	return index
}

// magnetBootstrapOrDie announces to the magnet's tracker, then fetches the
// descriptor over the ut_metadata extension, trying the announced peers one
// at a time in order until one delivers it, matching a magnet-only CLI
// invocation that has no local .torrent file to read the descriptor from.
func magnetBootstrapOrDie(m *metainfo.Magnet) *metainfo.TorrentInfo {
	config, logger, stats := setup()
	localPeerID, err := core.RandomPeerID()
	if err != nil {
		log.Fatalf("Failed to generate peer id: %s", err)
	}

	client := tracker.New(config.Tracker)
	peerAddrs, err := client.Announce(m.Announce, m.InfoHash, localPeerID, 0, 0, 1, clientPort)
	if err != nil {
		log.Fatalf("Announce failed: %s", err)
	}

	state := swarmstate.New("", func(int) int64 { return 0 }, config.Assembler)
	d := swarm.New(localPeerID, m.InfoHash, state, config.Swarm, stats, logger)

	if err := d.BootstrapMetadata(peerAddrs); err != nil {
		log.Fatalf("Metadata bootstrap failed: %s", err)
	}

	return state.Descriptor()
}

func runDownload(announceURL string, info *metainfo.TorrentInfo, indices []int, writeOffset func(int) int64) {
	config, logger, stats := setup()
	localPeerID, err := core.RandomPeerID()
	if err != nil {
		log.Fatalf("Failed to generate peer id: %s", err)
	}

	client := tracker.New(config.Tracker)
	peerAddrs, err := client.Announce(announceURL, info.InfoHash(), localPeerID, 0, 0, info.Length, clientPort)
	if err != nil {
		log.Fatalf("Announce failed: %s", err)
	}

	var state *swarmstate.State
	if indices == nil {
		state = swarmstate.NewInstalled(info, outputPath, writeOffset, config.Assembler)
	} else {
		state = swarmstate.NewInstalledSubset(info, indices, outputPath, writeOffset, config.Assembler)
	}

	d := swarm.New(localPeerID, info.InfoHash(), state, config.Swarm, stats, logger)
	if err := d.Download(peerAddrs); err != nil {
		log.Fatalf("Download failed: %s", err)
	}

	log.Infof("Downloaded %d/%d pieces to %s", state.Scheduler().NumCompleted(), info.NumPieces(), outputPath)
}
