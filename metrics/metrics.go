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

// Package metrics constructs the tally.Scope the download engine reports
// into, selected by config: statsd for real deployments, a console
// reporter for ad hoc runs, or a no-op scope when reporting is off.
package metrics

import (
	"fmt"
	"io"

	"github.com/uber-go/tally"
)

type scopeFactory func(config Config, cluster string) (tally.Scope, io.Closer, error)

var _scopeFactories = map[string]scopeFactory{
	"statsd":   newStatsdScope,
	"disabled": newDisabledScope,
	"default": func(config Config, _ string) (tally.Scope, io.Closer, error) {
		return newDefaultScope(config)
	},
}

// New creates a metrics scope from config. An empty backend means metrics
// are disabled; an unknown backend is a config error.
func New(config Config, cluster string) (tally.Scope, io.Closer, error) {
	if config.Backend == "" {
		config.Backend = "disabled"
	}
	f, ok := _scopeFactories[config.Backend]
	if !ok {
		return nil, nil, fmt.Errorf("metrics backend %q not registered", config.Backend)
	}
	return f(config, cluster)
}
