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

// Package log wraps a global zap.SugaredLogger so that packages which have
// no logger of their own to thread through (init-time registration, fatal
// startup errors) can still log in the same structured style as the rest of
// the core.
package log

import (
	"go.uber.org/zap"
)

var _global = zap.NewNop().Sugar()

// Config configures the global logger.
type Config struct {
	Level string `yaml:"level"`
}

// Configure builds a production zap logger from config and installs it as
// the global logger, returning the underlying *zap.Logger so callers can
// defer its Sync.
func Configure(config Config) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	logger, err := zapConfig.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	_global = logger.Sugar()
	return logger
}

// SetGlobalLogger replaces the global logger, for tests that need to
// capture or silence log output.
func SetGlobalLogger(l *zap.SugaredLogger) {
	_global = l
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) {
	_global.Infof(format, args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) {
	_global.Warnf(format, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) {
	_global.Errorf(format, args...)
}

// Fatalf logs a formatted message at fatal level and exits the process.
func Fatalf(format string, args ...interface{}) {
	_global.Fatalf(format, args...)
}

// Info logs args at info level.
func Info(args ...interface{}) {
	_global.Info(args...)
}

// Fatal logs args at fatal level and exits the process.
func Fatal(args ...interface{}) {
	_global.Fatal(args...)
}
