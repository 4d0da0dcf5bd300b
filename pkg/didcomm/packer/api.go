/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package packer defines the envelope format the mediator speaks on the wire.
package packer

import (
	"context"
	"errors"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
)

// ErrMalformedEnvelope is returned by Unpack for bytes that are not an envelope of the packer's format.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Packer turns messages into envelopes and back.
type Packer interface {
	// Pack an envelope addressed to recipient.
	Pack(ctx context.Context, msg *model.Message, recipient string) ([]byte, error)
	// Unpack an envelope into the message it carries.
	Unpack(ctx context.Context, envelope []byte) (*model.Message, error)
	// MediaType of the envelopes.
	MediaType() string
}
