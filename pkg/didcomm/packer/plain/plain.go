/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package plain packs DIDComm v2 plaintext messages. It provides no confidentiality and stands in for the
// encrypted envelope formats, which plug in behind the same interface.
package plain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
)

// Packer is the plaintext packer.
type Packer struct{}

// New returns the plaintext packer.
func New() *Packer {
	return &Packer{}
}

// MediaType returns application/didcomm-plain+json.
func (p *Packer) MediaType() string {
	return transport.MediaTypePlaintext
}

// Pack marshals msg. The recipient is added to to when missing.
func (p *Packer) Pack(_ context.Context, msg *model.Message, recipient string) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("plain pack: nil message")
	}

	out := *msg
	if recipient != "" && !contains(out.To, recipient) {
		out.To = append(append([]string(nil), out.To...), recipient)
	}

	b, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("plain pack: %w", err)
	}

	return b, nil
}

// Unpack parses a plaintext message. id and type are required.
func (p *Packer) Unpack(_ context.Context, envelope []byte) (*model.Message, error) {
	var msg model.Message

	if err := json.Unmarshal(envelope, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s", packer.ErrMalformedEnvelope, err)
	}

	if msg.ID == "" || msg.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", packer.ErrMalformedEnvelope)
	}

	if msg.Body == nil {
		msg.Body = map[string]interface{}{}
	}

	return &msg, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}

	return false
}
