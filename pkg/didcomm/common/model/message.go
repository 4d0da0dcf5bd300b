/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package model holds the plaintext DIDComm v2 message the protocol services exchange.
package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Message is an unpacked DIDComm v2 message.
type Message struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	From        string                 `json:"from,omitempty"`
	To          []string               `json:"to,omitempty"`
	ThID        string                 `json:"thid,omitempty"`
	PThID       string                 `json:"pthid,omitempty"`
	CreatedTime int64                  `json:"created_time,omitempty"`
	ExpiresTime int64                  `json:"expires_time,omitempty"`
	Body        map[string]interface{} `json:"body"`
	Attachments []Attachment           `json:"attachments,omitempty"`
}

// Attachment is an embedded payload.
type Attachment struct {
	ID        string         `json:"id,omitempty"`
	MediaType string         `json:"media_type,omitempty"`
	Data      AttachmentData `json:"data"`
}

// AttachmentData carries the attachment either as inline JSON or base64.
type AttachmentData struct {
	JSON   json.RawMessage `json:"json,omitempty"`
	Base64 string          `json:"base64,omitempty"`
}

// NewMessage returns a message of msgType with a fresh id. body is any value that marshals to a JSON object;
// nil gives an empty body.
func NewMessage(msgType string, body interface{}) *Message {
	msg := &Message{
		ID:          uuid.New().String(),
		Type:        msgType,
		CreatedTime: time.Now().Unix(),
		Body:        map[string]interface{}{},
	}

	if body != nil {
		if err := msg.SetBody(body); err != nil {
			// bodies are package-defined structs
			panic(err)
		}
	}

	return msg
}

// Reply returns a message of msgType answering m: same thread, addressed to m's sender.
func (m *Message) Reply(msgType string, body interface{}) *Message {
	reply := NewMessage(msgType, body)
	reply.ThID = m.ThreadID()

	if m.From != "" {
		reply.To = []string{m.From}
	}

	return reply
}

// ThreadID returns thid, or the id of a message that starts its thread.
func (m *Message) ThreadID() string {
	if m.ThID != "" {
		return m.ThID
	}

	return m.ID
}

// SetBody replaces the body with the JSON object form of v.
func (m *Message) SetBody(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	body := map[string]interface{}{}

	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("body is not a JSON object: %w", err)
	}

	m.Body = body

	return nil
}

// DecodeBody decodes the body into out, a pointer to a struct with json tags.
func (m *Message) DecodeBody(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return fmt.Errorf("failed to initialize decoder : %w", err)
	}

	if err := decoder.Decode(m.Body); err != nil {
		return fmt.Errorf("decode %s body: %w", m.Type, err)
	}

	return nil
}

// NewJSONAttachment attaches payload inline when it is JSON and as base64 otherwise.
func NewJSONAttachment(id string, payload []byte) Attachment {
	a := Attachment{ID: id, MediaType: "application/json"}

	if json.Valid(payload) {
		a.Data.JSON = append(json.RawMessage(nil), payload...)
	} else {
		a.MediaType = ""
		a.Data.Base64 = base64.StdEncoding.EncodeToString(payload)
	}

	return a
}

// Bytes returns the attached payload.
func (a *Attachment) Bytes() ([]byte, error) {
	switch {
	case len(a.Data.JSON) > 0:
		return a.Data.JSON, nil
	case a.Data.Base64 != "":
		b, err := base64.StdEncoding.DecodeString(a.Data.Base64)
		if err != nil {
			// some agents send unpadded base64url
			b, err = base64.RawURLEncoding.DecodeString(a.Data.Base64)
		}

		if err != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", a.ID, err)
		}

		return b, nil
	default:
		return nil, errors.New("attachment has no data")
	}
}
