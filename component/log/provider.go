/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"io"
	"sync"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log/internal/modlog"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/log"
)

// loggerProviderInstance is logger factory singleton - access only via loggerProvider()
//
//nolint:gochecknoglobals
var (
	loggerProviderInstance log.LoggerProvider
	loggerProviderOnce     sync.Once
)

// Initialize sets new custom logging provider which takes over logging operations.
// It is required to call this function before making any loggings for using custom loggers.
func Initialize(l log.LoggerProvider) {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = &modlogProvider{l}
		logger := loggerProviderInstance.GetLogger(loggerModule)
		logger.Debugf("Logger provider initialized")
	})
}

func loggerProvider() log.LoggerProvider {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = &modlogProvider{}
		logger := loggerProviderInstance.GetLogger(loggerModule)
		logger.Debugf(loggerNotInitializedMsg)
	})

	return loggerProviderInstance
}

// NewZerologProvider returns a provider whose loggers write through zerolog to out.
// When json is false entries are rendered as console lines.
func NewZerologProvider(out io.Writer, json bool) log.LoggerProvider {
	return &zerologProvider{out: out, json: json}
}

type zerologProvider struct {
	out  io.Writer
	json bool
}

func (p *zerologProvider) GetLogger(module string) log.Logger {
	return modlog.NewZeroLog(module, p.out, p.json)
}

// modlogProvider is a module based logger provider wrapped on given custom logging provider
// if custom logger provider is not provided, then the zerolog console logger is used.
type modlogProvider struct {
	custom log.LoggerProvider
}

// GetLogger returns moduled logger implementation.
func (p *modlogProvider) GetLogger(module string) log.Logger {
	var logger log.Logger
	if p.custom != nil {
		logger = p.custom.GetLogger(module)
	} else {
		logger = modlog.NewZeroLog(module, nil, false)
	}

	return modlog.NewModLog(logger, module)
}
