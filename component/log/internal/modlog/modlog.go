/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package modlog applies per-module level filtering on top of any log.Logger backend.
package modlog

import (
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log/internal/metadata"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/log"
)

// NewModLog wraps logger so that entries below the level configured for module are dropped.
func NewModLog(logger log.Logger, module string) *ModLog {
	return &ModLog{logger: logger, module: module}
}

// ModLog filters by module level before delegating. Fatalf and Panicf are never filtered.
type ModLog struct {
	logger log.Logger
	module string
}

// Fatalf delegates unconditionally.
func (m *ModLog) Fatalf(format string, args ...interface{}) {
	m.logger.Fatalf(format, args...)
}

// Panicf delegates unconditionally.
func (m *ModLog) Panicf(format string, args ...interface{}) {
	m.logger.Panicf(format, args...)
}

// Debugf delegates when DEBUG is enabled for the module.
func (m *ModLog) Debugf(format string, args ...interface{}) {
	m.emit(log.DEBUG, m.logger.Debugf, format, args)
}

// Infof delegates when INFO is enabled for the module.
func (m *ModLog) Infof(format string, args ...interface{}) {
	m.emit(log.INFO, m.logger.Infof, format, args)
}

// Warnf delegates when WARNING is enabled for the module.
func (m *ModLog) Warnf(format string, args ...interface{}) {
	m.emit(log.WARNING, m.logger.Warnf, format, args)
}

// Errorf delegates when ERROR is enabled for the module.
func (m *ModLog) Errorf(format string, args ...interface{}) {
	m.emit(log.ERROR, m.logger.Errorf, format, args)
}

func (m *ModLog) emit(level log.Level, fn func(string, ...interface{}), format string, args []interface{}) {
	if !metadata.IsEnabledFor(m.module, level) {
		return
	}

	fn(format, args...)
}
