/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	invalidRequest = Code(iota + Admin)
	queryError
)

func TestSendError(t *testing.T) {
	const errMsg = "here is the sample which I want to write to response"

	senders := []struct {
		send       func(http.ResponseWriter, Code, error)
		statusCode int
	}{
		{SendHTTPBadRequest, http.StatusBadRequest},
		{SendHTTPNotFound, http.StatusNotFound},
		{SendHTTPServiceUnavailable, http.StatusServiceUnavailable},
		{SendHTTPInternalServerError, http.StatusInternalServerError},
	}

	for _, s := range senders {
		for _, code := range []Code{UnknownStatus, invalidRequest, queryError} {
			rr := httptest.NewRecorder()

			s.send(rr, code, fmt.Errorf(errMsg))
			require.Equal(t, s.statusCode, rr.Code)
			require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			response := genericError{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			require.Equal(t, genericError{Code: code, Message: errMsg}, response)
		}
	}

	t.Run("unknown error", func(t *testing.T) {
		rr := httptest.NewRecorder()

		SendUnknownError(rr, fmt.Errorf(errMsg))
		require.Equal(t, http.StatusInternalServerError, rr.Code)

		response := genericError{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Equal(t, UnknownStatus, response.Code)
	})
}
