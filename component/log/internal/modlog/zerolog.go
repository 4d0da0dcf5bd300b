/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewZeroLog returns a logger for module writing to out. When json is false the output is a human-readable
// console line, otherwise one JSON object per entry.
func NewZeroLog(module string, out io.Writer, json bool) *ZeroLog {
	if out == nil {
		out = os.Stdout
	}

	if !json {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}

	logger := zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Str("module", module).Logger()

	return &ZeroLog{logger: logger}
}

// ZeroLog adapts a zerolog.Logger to the printf-style Logger contract.
// Level filtering is left to ModLog so that per-module levels apply to every backend.
type ZeroLog struct {
	logger zerolog.Logger
}

// Fatalf logs at fatal level and exits the process.
func (l *ZeroLog) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// Panicf logs at panic level and panics with the message.
func (l *ZeroLog) Panicf(format string, args ...interface{}) {
	l.logger.Panic().Msgf(format, args...)
}

// Debugf logs at debug level.
func (l *ZeroLog) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Infof logs at info level.
func (l *ZeroLog) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warnf logs at warn level.
func (l *ZeroLog) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Errorf logs at error level.
func (l *ZeroLog) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}
