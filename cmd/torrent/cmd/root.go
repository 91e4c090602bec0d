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

// Package cmd implements the torrent CLI: a thin cobra shell around
// lib/metainfo, lib/tracker, and lib/swarm exposing info, peers,
// handshake, download-piece, and download (plus their magnet-only
// variants) as subcommands.
package cmd

import (
	"os"

	"github.com/kraken-torrent/swarm/metrics"
	"github.com/kraken-torrent/swarm/utils/log"

	"github.com/spf13/cobra"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "torrent",
	Short: "torrent downloads a single-file BitTorrent v1 swarm over a minimal peer-wire client.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFile, "config", "c", "", "configuration file path")
}

// Execute runs the CLI, exiting the process with a non-zero status on
// error (cobra's default SilenceErrors/Usage behavior is left as-is).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configFile, configures the global logger, and initializes a
// metrics scope, returning both so subcommands can thread them down into
// lib/swarm and lib/tracker. stats is always non-nil (disabled backend on
// error), matching metrics.New's own no-op fallback.
func setup() (Config, *zap.SugaredLogger, tally.Scope) {
	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}

	zlog := log.Configure(config.ZapLogging)
	logger := zlog.Sugar()

	stats, _, err := metrics.New(config.Metrics, "torrent-cli")
	if err != nil {
		logger.Warnf("Failed to init metrics, falling back to no-op: %s", err)
		stats = tally.NoopScope
	}

	return config, logger, stats
}
