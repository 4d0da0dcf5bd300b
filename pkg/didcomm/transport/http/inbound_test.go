/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
)

type mockHandler struct {
	reply    *transport.Reply
	err      error
	received []byte
}

func (h *mockHandler) MediaTypes() []string { return []string{transport.MediaTypePlaintext} }

func (h *mockHandler) HandleInbound(_ context.Context, mediaType string, envelope []byte) (*transport.Reply, error) {
	if mediaType != transport.MediaTypePlaintext {
		return nil, errors.New("unexpected media type " + mediaType)
	}

	h.received = envelope

	return h.reply, h.err
}

func post(t *testing.T, url, contentType, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, contentType, bytes.NewBufferString(body)) //nolint:noctx
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, resp.Body.Close())
	})

	return resp
}

func TestNewInboundHandler(t *testing.T) {
	h, err := NewInboundHandler(nil)
	require.Error(t, err)
	require.Nil(t, h)

	h, err = NewInboundHandler(&mockHandler{})
	require.NoError(t, err)
	require.NotNil(t, h)
}

func TestInboundHandler(t *testing.T) {
	reply := &transport.Reply{MediaType: transport.MediaTypePlaintext, Payload: []byte(`{"id":"2"}`)}

	serve := func(t *testing.T, mh *mockHandler, opts ...Option) string {
		t.Helper()

		h, err := NewInboundHandler(mh, opts...)
		require.NoError(t, err)

		server := httptest.NewServer(h)
		t.Cleanup(server.Close)

		return server.URL
	}

	t.Run("reply", func(t *testing.T) {
		mh := &mockHandler{reply: reply}
		url := serve(t, mh)

		resp := post(t, url, transport.MediaTypePlaintext+"; charset=utf-8", `{"id":"1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, transport.MediaTypePlaintext, resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, reply.Payload, body)
		require.Equal(t, []byte(`{"id":"1"}`), mh.received)
	})

	t.Run("no reply", func(t *testing.T) {
		resp := post(t, serve(t, &mockHandler{}), transport.MediaTypePlaintext, `{"id":"1"}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Get(serve(t, &mockHandler{})) //nolint:noctx
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		url := serve(t, &mockHandler{})

		for _, ct := range []string{"", "text/plain", "application/json"} {
			resp := post(t, url, ct, `{"id":"1"}`)
			require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode, ct)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		resp := post(t, serve(t, &mockHandler{}), transport.MediaTypePlaintext, "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("body too large", func(t *testing.T) {
		resp := post(t, serve(t, &mockHandler{}, WithMaxEnvelopeSize(4)), transport.MediaTypePlaintext, `{"id":"1"}`)
		require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("refusals carry the problem report", func(t *testing.T) {
		for _, tc := range []struct {
			err    error
			status int
		}{
			{problem.New(problem.Malformed, errors.New("bad")), http.StatusBadRequest},
			{problem.New(problem.Denied, errors.New("no")), http.StatusForbidden},
			{problem.New(problem.Internal, errors.New("bug")), http.StatusInternalServerError},
		} {
			resp := post(t, serve(t, &mockHandler{reply: reply, err: tc.err}), transport.MediaTypePlaintext, `{}`)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Empty(t, resp.Header.Get("Retry-After"))

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, reply.Payload, body)
		}
	})

	t.Run("internal detail stays out of the body", func(t *testing.T) {
		url := serve(t, &mockHandler{err: problem.New(problem.Internal, errors.New("pack: no key agreement key for did:x"))})

		resp := post(t, url, transport.MediaTypePlaintext, `{}`)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NotContains(t, string(body), "key agreement")
		require.Contains(t, string(body), http.StatusText(http.StatusInternalServerError))

		url = serve(t, &mockHandler{err: problem.New(problem.Denied, errors.New("not addressed to this mediator"))})

		resp = post(t, url, transport.MediaTypePlaintext, `{}`)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)

		body, err = io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "not addressed")
	})

	t.Run("unavailable asks to retry", func(t *testing.T) {
		url := serve(t, &mockHandler{err: resilience.ErrCircuitOpen}, WithRetryAfter(5*time.Second))

		resp := post(t, url, transport.MediaTypePlaintext, `{}`)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.Equal(t, "5", resp.Header.Get("Retry-After"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(body), "circuit"))
	})
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusFor(problem.Newf(problem.Malformed, "x")))
	require.Equal(t, http.StatusForbidden, StatusFor(problem.Newf(problem.Denied, "x")))
	require.Equal(t, http.StatusServiceUnavailable, StatusFor(resilience.ErrCircuitOpen))
	require.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("x")))
}
