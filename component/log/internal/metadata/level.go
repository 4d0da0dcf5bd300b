/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metadata keeps the per-module log level table behind the log facade.
package metadata

import (
	"errors"
	"strings"
	"sync"

	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/log"
)

const (
	defaultLogLevel   = log.INFO
	defaultModuleName = ""
)

//nolint:gochecknoglobals
var (
	rwmutex = &sync.RWMutex{}
	levels  = map[string]log.Level{}
)

// SetLevel sets the log level for the given module. An empty module sets the default for all modules.
func SetLevel(module string, level log.Level) {
	rwmutex.Lock()
	defer rwmutex.Unlock()

	levels[module] = level
}

// GetLevel returns the log level for the given module, falling back to the default module and then INFO.
func GetLevel(module string) log.Level {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return getLevel(module)
}

func getLevel(module string) log.Level {
	level, exists := levels[module]
	if !exists {
		level, exists = levels[defaultModuleName]
		if !exists {
			return defaultLogLevel
		}
	}

	return level
}

// IsEnabledFor reports whether logging at level is enabled for module.
func IsEnabledFor(module string, level log.Level) bool {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return level <= getLevel(module)
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (log.Level, error) {
	for l := log.CRITICAL; l <= log.DEBUG; l++ {
		if strings.EqualFold(l.String(), level) {
			return l, nil
		}
	}

	return log.ERROR, errors.New("logger: invalid log level")
}

// Reset drops every configured level. Used by tests.
func Reset() {
	rwmutex.Lock()
	defer rwmutex.Unlock()

	levels = map[string]log.Level{}
}
