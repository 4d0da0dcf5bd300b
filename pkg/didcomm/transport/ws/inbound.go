/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ws is the WebSocket ingress. Every frame is one envelope; replies and problem reports go back on the same
// connection.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
)

var logger = log.New("didcomm-mediator/ws")

const defaultReadLimit = 1 << 20

// Inbound http(ws) type.
type Inbound struct {
	externalAddr string
	server       *http.Server
	readLimit    int64
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr}, //nolint:gosec
		readLimit:    defaultReadLimit,
	}, nil
}

// Start the http(ws) server.
func (i *Inbound) Start(handler transport.InboundHandler) error {
	h, err := NewInboundHandler(handler, i.readLimit)
	if err != nil {
		return fmt.Errorf("websocket server start failed: %w", err)
	}

	i.server.Handler = h

	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server start with address [%s] failed, cause:  %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the http(ws) server.
func (i *Inbound) Stop() error {
	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("websocket server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the http(ws) connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// NewInboundHandler returns an http.Handler upgrading requests to WebSocket connections served by handler.
// Frames are read as envelopes of the handler's first media type.
func NewInboundHandler(handler transport.InboundHandler, readLimit int64) (http.Handler, error) {
	if handler == nil || len(handler.MediaTypes()) == 0 {
		return nil, errors.New("creation of inbound handler failed: message handler is nil")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Errorf("failed to upgrade the connection : %v", err)

			return
		}

		if readLimit > 0 {
			c.SetReadLimit(readLimit)
		}

		serve(r.Context(), c, handler)
	}), nil
}

func serve(ctx context.Context, c *websocket.Conn, handler transport.InboundHandler) {
	mediaType := handler.MediaTypes()[0]

	defer func() {
		if err := c.Close(websocket.StatusNormalClosure, "closing the connection"); err != nil {
			logger.Debugf("failed to close connection: %v", err)
		}
	}()

	for {
		_, envelope, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Debugf("Error reading request message: %v", err)
			}

			return
		}

		reply, err := handler.HandleInbound(ctx, mediaType, envelope)
		if err != nil {
			logger.Debugf("incoming msg processing failed: %v", err)
		}

		if reply == nil {
			continue
		}

		if err := c.Write(ctx, websocket.MessageText, reply.Payload); err != nil {
			logger.Errorf("error writing the message: %v", err)

			return
		}
	}
}
