/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"encoding/json"
	"net/http"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
)

var logger = log.New("didcomm-mediator/rest")

// genericError is the rest api error response.
type genericError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Group is the error groups.
// Note: recommended to use [0-9]*000 pattern for any new entries
// Example: 2000, 3000, 4000 ...... 25000
type Group int32

const (
	// Admin error group for connection administration rest api errors.
	Admin Group = 1000

	// WellKnown error group for discovery rest api errors.
	WellKnown Group = 2000
)

// Code is the error code of rest api errors.
type Code int32

const (
	// UnknownStatus default error code for unknown errors.
	UnknownStatus Code = iota
)

// SendHTTPBadRequest sends http status code BAD REQUEST to response with given error body.
func SendHTTPBadRequest(rw http.ResponseWriter, code Code, err error) {
	SendHTTPStatusError(rw, code, err, http.StatusBadRequest)
}

// SendHTTPNotFound sends http status code NOT FOUND to response with given error body.
func SendHTTPNotFound(rw http.ResponseWriter, code Code, err error) {
	SendHTTPStatusError(rw, code, err, http.StatusNotFound)
}

// SendHTTPServiceUnavailable sends http status code SERVICE UNAVAILABLE to response with given error body.
func SendHTTPServiceUnavailable(rw http.ResponseWriter, code Code, err error) {
	SendHTTPStatusError(rw, code, err, http.StatusServiceUnavailable)
}

// SendHTTPInternalServerError sends http status code INTERNAL SERVER ERROR to response with given error body.
func SendHTTPInternalServerError(rw http.ResponseWriter, code Code, err error) {
	SendHTTPStatusError(rw, code, err, http.StatusInternalServerError)
}

// SendUnknownError sends unknown/default error through response with given error body.
func SendUnknownError(rw http.ResponseWriter, err error) {
	SendHTTPStatusError(rw, UnknownStatus, err, http.StatusInternalServerError)
}

// SendHTTPStatusError sends given http status code to response with error body.
func SendHTTPStatusError(rw http.ResponseWriter, code Code, err error, statusCode int) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)

	e := json.NewEncoder(rw).Encode(genericError{
		Code:    code,
		Message: err.Error(),
	})
	if e != nil {
		logger.Errorf("Unable to send error response, %s", e)
	}
}
