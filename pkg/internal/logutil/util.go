/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package logutil formats protocol events as key=[value] pairs so log lines stay greppable across services.
package logutil

import (
	"fmt"
	"strings"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
)

// LogError logs a failed action of a protocol service.
func LogError(logger *log.Log, service, action, errMsg string, data ...string) {
	logger.Errorf("service=[%s] action=[%s] %s errMsg=[%s]", service, action, strings.Join(data, " "), errMsg)
}

// LogDebug logs a protocol service step.
func LogDebug(logger *log.Log, service, action, msg string, data ...string) {
	logger.Debugf("service=[%s] action=[%s] %s msg=[%s]", service, action, strings.Join(data, " "), msg)
}

// LogInfo logs a protocol service outcome.
func LogInfo(logger *log.Log, service, action, msg string, data ...string) {
	logger.Infof("service=[%s] action=[%s] %s msg=[%s]", service, action, strings.Join(data, " "), msg)
}

// CreateKeyValueString creates a concatenated string.
func CreateKeyValueString(key, val string) string {
	return fmt.Sprintf("%s=[%s]", key, val)
}
