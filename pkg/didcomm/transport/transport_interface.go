/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import "context"

// Reply is a packed message going back on the connection a request came in on.
type Reply struct {
	MediaType string
	Payload   []byte
}

// InboundHandler handles the envelopes an inbound transport receives. A nil Reply with a nil error means the
// envelope was accepted and needs no answer. On error the Reply, when set, carries a problem report.
type InboundHandler interface {
	HandleInbound(ctx context.Context, mediaType string, envelope []byte) (*Reply, error)
	// MediaTypes the handler can unpack.
	MediaTypes() []string
}
