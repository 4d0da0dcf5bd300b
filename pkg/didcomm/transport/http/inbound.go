/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package http is the HTTP ingress: one POST endpoint taking envelopes and answering with the packed reply.
package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
)

var logger = log.New("didcomm-mediator/http")

const (
	defaultMaxEnvelopeSize = 1 << 20
	defaultRetryAfter      = 30 * time.Second
)

// Option configures the inbound handler.
type Option func(o *options)

type options struct {
	maxEnvelopeSize int64
	retryAfter      time.Duration
}

// WithMaxEnvelopeSize limits request bodies to n bytes.
func WithMaxEnvelopeSize(n int64) Option {
	return func(o *options) {
		o.maxEnvelopeSize = n
	}
}

// WithRetryAfter sets the Retry-After hint sent with 503 answers.
func WithRetryAfter(d time.Duration) Option {
	return func(o *options) {
		o.retryAfter = d
	}
}

// NewInboundHandler returns the http.Handler of the ingress endpoint.
//
// Answers:
//   - 405 for anything but POST;
//   - 415 for a Content-Type the handler cannot unpack;
//   - 400 for an empty body or a malformed message;
//   - 200 with the packed reply, 202 when there is none;
//   - 403, 503 or 500 with a problem report when the message is refused.
func NewInboundHandler(handler transport.InboundHandler, opts ...Option) (http.Handler, error) {
	if handler == nil {
		return nil, errors.New("creation of inbound handler failed: message handler is nil")
	}

	o := &options{maxEnvelopeSize: defaultMaxEnvelopeSize, retryAfter: defaultRetryAfter}
	for _, opt := range opts {
		opt(o)
	}

	accepted := map[string]struct{}{}
	for _, mt := range handler.MediaTypes() {
		accepted[mt] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, handler, accepted, o)
	}), nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, handler transport.InboundHandler,
	accepted map[string]struct{}, o *options) {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	mediaType := transport.MediaTypeOf(r.Header.Get("Content-Type"))
	if _, ok := accepted[mediaType]; !ok {
		http.Error(w, fmt.Sprintf("Unsupported Content-Type %q", r.Header.Get("Content-Type")),
			http.StatusUnsupportedMediaType)

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, o.maxEnvelopeSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)

			return
		}

		logger.Errorf("Error reading request body: %s", err)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	if len(body) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)

		return
	}

	reply, err := handler.HandleInbound(r.Context(), mediaType, body)
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", strconv.Itoa(int(o.retryAfter/time.Second)))
		}

		writeReply(w, status, reply, err)

		return
	}

	if reply == nil {
		w.WriteHeader(http.StatusAccepted)

		return
	}

	writeReply(w, http.StatusOK, reply, nil)
}

func writeReply(w http.ResponseWriter, status int, reply *transport.Reply, cause error) {
	if reply == nil {
		msg := cause.Error()
		if problem.KindOf(cause) == problem.Internal {
			msg = http.StatusText(status)
		}

		http.Error(w, msg, status)

		return
	}

	w.Header().Set("Content-Type", reply.MediaType)
	w.WriteHeader(status)

	if _, err := w.Write(reply.Payload); err != nil {
		logger.Warnf("failed to write reply: %s", err)
	}
}

// StatusFor maps the kind of a handling error to an HTTP status.
func StatusFor(err error) int {
	switch problem.KindOf(err) {
	case problem.Malformed:
		return http.StatusBadRequest
	case problem.Denied:
		return http.StatusForbidden
	case problem.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
