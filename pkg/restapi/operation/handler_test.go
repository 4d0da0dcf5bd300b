/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHTTPHandler(t *testing.T) {
	path := "/sample-path"
	method := http.MethodGet

	handled := false
	handlerFn := func(w http.ResponseWriter, r *http.Request) {
		handled = true
	}

	handler := NewHTTPHandler(path, method, handlerFn)
	require.Equal(t, path, handler.Path())
	require.Equal(t, method, handler.Method())
	require.NotNil(t, handler.Handle())

	handler.Handle()(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
	require.True(t, handled)
}
