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

	"github.com/kraken-torrent/swarm/lib/assembler"
	"github.com/kraken-torrent/swarm/lib/swarm"
	"github.com/kraken-torrent/swarm/lib/tracker"
	"github.com/kraken-torrent/swarm/metrics"
	"github.com/kraken-torrent/swarm/utils/log"

	"gopkg.in/yaml.v2"
)

// Config defines torrent CLI configuration, aggregating every tunable
// subsystem's own Config so a single YAML file (--config) configures the
// whole process.
type Config struct {
	ZapLogging log.Config      `yaml:"zap"`
	Metrics    metrics.Config  `yaml:"metrics"`
	Tracker    tracker.Config  `yaml:"tracker"`
	Swarm      swarm.Config    `yaml:"swarm"`
	Assembler  assembler.Config `yaml:"assembler"`
}

// loadConfig reads and parses a YAML file at path into a Config, returning a
// zero-value Config (every subsystem falls back to its own applyDefaults)
// when path is empty.
func loadConfig(path string) (Config, error) {
	var config Config
	if path == "" {
		return config, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config file: %s", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parsing config file: %s", err)
	}
	return config, nil
}
