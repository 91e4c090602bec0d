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
	"io/ioutil"

	"github.com/kraken-torrent/swarm/lib/metainfo"
	"github.com/kraken-torrent/swarm/utils/log"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "print a metainfo file's tracker URL, info-hash, and piece layout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mi := parseMetainfoFileOrDie(args[0])
		printTorrentInfo(mi.Announce, mi.Info)
	},
}

var magnetInfoCmd = &cobra.Command{
	Use:   "magnet-info <magnet-uri>",
	Short: "print a magnet link's parsed fields",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m := parseMagnetOrDie(args[0])
		fmt.Printf("Info Hash: %s\n", m.InfoHash)
		fmt.Printf("Display Name: %s\n", m.DisplayName)
		fmt.Printf("Tracker URL: %s\n", m.Announce)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd, magnetInfoCmd)
}

func printTorrentInfo(announce string, info *metainfo.TorrentInfo) {
	fmt.Printf("Tracker URL: %s\n", announce)
	fmt.Printf("Length: %d\n", info.Length)
	fmt.Printf("Info Hash: %s\n", info.InfoHash())
	fmt.Printf("Piece Length: %d\n", info.PieceLength)
	fmt.Println("Piece Hashes:")
	for i, p := range info.Pieces {
		fmt.Printf("%d: %x\n", i, p)
	}
}

func parseMetainfoFileOrDie(path string) *metainfo.MetaInfo {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %s", path, err)
	}
	mi, err := metainfo.Parse(data)
	if err != nil {
		log.Fatalf("Failed to parse %s: %s", path, err)
	}
	return mi
}

func parseMagnetOrDie(uri string) *metainfo.Magnet {
	m, err := metainfo.ParseMagnet(uri)
	if err != nil {
		log.Fatalf("Failed to parse magnet uri: %s", err)
	}
	return m
}
