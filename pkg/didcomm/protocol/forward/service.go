/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package forward queues messages that correspondents route through the mediator until the recipient picks them up.
package forward

import (
	"context"
	"errors"
	"fmt"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/internal/logutil"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/routedmsg"
)

var logger = log.New("didcomm-mediator/forward")

const (
	// Routing defines the protocol name.
	Routing = "routing"
	// Spec defines the protocol URI prefix.
	Spec = "https://didcomm.org/routing/2.0/"
	// ForwardMsgType is the forward message type.
	ForwardMsgType = Spec + "forward"

	codeUnroutable = "e.p.msg.unroutable"
)

var (
	// ErrMalformedForward is returned for a forward without next or without an attached message.
	ErrMalformedForward = errors.New("forward requires next and one attached message")
	// ErrUnroutableRecipient is returned when next is neither a client nor a registered key.
	ErrUnroutableRecipient = errors.New("recipient is not mediated here")
)

// Body is the body of forward.
type Body struct {
	Next string `json:"next"`
}

// provider contains dependencies for the routing protocol.
type provider interface {
	ConnectionRepository() *connection.Repository
	MessageRepository() *routedmsg.Repository
}

// Service for routing forward messages.
type Service struct {
	connections *connection.Repository
	messages    *routedmsg.Repository
}

// New returns the forward service.
func New(prov provider) (*Service, error) {
	if prov.ConnectionRepository() == nil || prov.MessageRepository() == nil {
		return nil, errors.New("forward: connection and message repositories are required")
	}

	return &Service{connections: prov.ConnectionRepository(), messages: prov.MessageRepository()}, nil
}

// Name of the protocol.
func (s *Service) Name() string {
	return Routing
}

// MessageTypes handled by the service.
func (s *Service) MessageTypes() []string {
	return []string{ForwardMsgType}
}

// Accept reports whether msgType is handled by the service.
func (s *Service) Accept(msgType string) bool {
	return msgType == ForwardMsgType
}

// Handle queues the attached message for next. There is no reply on success.
// The sender needs no connection with the mediator.
func (s *Service) Handle(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.Type != ForwardMsgType {
		return nil, problem.Newf(problem.Malformed, "routing: unsupported message type %s", msg.Type)
	}

	var body Body
	if err := msg.DecodeBody(&body); err != nil {
		return nil, problem.Newf(problem.Malformed, "%w: %s", ErrMalformedForward, err)
	}

	if body.Next == "" || len(msg.Attachments) == 0 {
		return nil, problem.New(problem.Malformed, ErrMalformedForward)
	}

	payload, err := msg.Attachments[0].Bytes()
	if err != nil {
		return nil, problem.Newf(problem.Malformed, "%w: %s", ErrMalformedForward, err)
	}

	_, err = s.connections.FindByRecipient(ctx, body.Next)

	switch {
	case errors.Is(err, connection.ErrNotFound):
		logutil.LogInfo(logger, Routing, "forward", "rejecting message for unknown recipient",
			logutil.CreateKeyValueString("next", body.Next),
			logutil.CreateKeyValueString("msgID", msg.ID))

		return nil, &problem.Error{
			Kind: problem.Denied,
			Code: codeUnroutable,
			Err:  fmt.Errorf("%w: %s", ErrUnroutableRecipient, body.Next),
		}
	case errors.Is(err, connection.ErrInvariant):
		logger.Errorf("connection store invariant broken: %s", err)

		return nil, problem.New(problem.Internal, err)
	case err != nil:
		return nil, problem.Unavailablef(err, "look up recipient %s", body.Next)
	}

	rec, err := s.messages.Store(ctx, body.Next, payload)
	if err != nil {
		logutil.LogError(logger, Routing, "forward", err.Error(), logutil.CreateKeyValueString("next", body.Next))

		return nil, problem.Unavailablef(err, "queue message for %s", body.Next)
	}

	logutil.LogDebug(logger, Routing, "forward", "message queued",
		logutil.CreateKeyValueString("next", body.Next),
		logutil.CreateKeyValueString("routedMsgID", rec.ID))

	return nil, nil
}
