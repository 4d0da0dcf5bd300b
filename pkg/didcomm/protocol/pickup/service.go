/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package pickup implements the mediator side of messagepickup 3.0. Clients ask how many messages wait for them,
// fetch batches and acknowledge what they received. Only acknowledged messages leave the queue.
package pickup

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/internal/logutil"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/routedmsg"
)

var logger = log.New("didcomm-mediator/pickup")

const (
	// MessagePickup defines the protocol name.
	MessagePickup = "messagepickup"
	// Spec defines the protocol URI prefix.
	Spec = "https://didcomm.org/messagepickup/3.0/"

	StatusRequestMsgType      = Spec + "status-request"
	StatusMsgType             = Spec + "status"
	DeliveryRequestMsgType    = Spec + "delivery-request"
	DeliveryMsgType           = Spec + "delivery"
	MessagesReceivedMsgType   = Spec + "messages-received"
	LiveDeliveryChangeMsgType = Spec + "live-delivery-change"
)

// provider contains dependencies for the pickup protocol.
type provider interface {
	ConnectionRepository() *connection.Repository
	MessageRepository() *routedmsg.Repository
}

// Service for messagepickup.
type Service struct {
	connections *connection.Repository
	messages    *routedmsg.Repository
	now         func() time.Time
}

// New returns the pickup service.
func New(prov provider) (*Service, error) {
	if prov.ConnectionRepository() == nil || prov.MessageRepository() == nil {
		return nil, errors.New("pickup: connection and message repositories are required")
	}

	return &Service{
		connections: prov.ConnectionRepository(),
		messages:    prov.MessageRepository(),
		now:         time.Now,
	}, nil
}

// Name of the protocol.
func (s *Service) Name() string {
	return MessagePickup
}

// MessageTypes handled by the service.
func (s *Service) MessageTypes() []string {
	return []string{StatusRequestMsgType, DeliveryRequestMsgType, MessagesReceivedMsgType, LiveDeliveryChangeMsgType}
}

// Accept reports whether msgType is handled by the service.
func (s *Service) Accept(msgType string) bool {
	for _, t := range s.MessageTypes() {
		if t == msgType {
			return true
		}
	}

	return false
}

// Handle processes a pickup request and returns the reply.
func (s *Service) Handle(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.From == "" {
		return nil, problem.New(problem.Malformed, problem.ErrMissingSenderDID)
	}

	rec, err := s.connections.FindByClientDID(ctx, msg.From)
	if err != nil {
		return nil, repositoryError(err, "find connection of %s", msg.From)
	}

	switch msg.Type {
	case StatusRequestMsgType:
		return s.handleStatusRequest(ctx, msg, rec)
	case DeliveryRequestMsgType:
		return s.handleDeliveryRequest(ctx, msg, rec)
	case MessagesReceivedMsgType:
		return s.handleMessagesReceived(ctx, msg, rec)
	case LiveDeliveryChangeMsgType:
		report := model.NewProblemReport(problem.CodeLiveModeUnsupported,
			"Connection does not support Live Delivery", msg.ID, msg.ThID)
		report.To = []string{msg.From}

		return report, nil
	default:
		return nil, problem.Newf(problem.Malformed, "messagepickup: unsupported message type %s", msg.Type)
	}
}

func (s *Service) handleStatusRequest(ctx context.Context, msg *model.Message,
	rec *connection.Record) (*model.Message, error) {
	var body StatusRequestBody
	if err := msg.DecodeBody(&body); err != nil {
		return nil, problem.New(problem.Malformed, err)
	}

	status, err := s.status(ctx, rec, body.RecipientDID)
	if err != nil {
		return nil, err
	}

	return msg.Reply(StatusMsgType, status), nil
}

func (s *Service) handleDeliveryRequest(ctx context.Context, msg *model.Message,
	rec *connection.Record) (*model.Message, error) {
	var body DeliveryRequestBody
	if err := msg.DecodeBody(&body); err != nil {
		return nil, problem.New(problem.Malformed, err)
	}

	if body.Limit <= 0 {
		return nil, problem.Newf(problem.Malformed, "delivery-request: limit must be positive, got %d", body.Limit)
	}

	recipients := owned(rec, body.RecipientDID)

	msgs, err := s.messages.ListOldestFirst(ctx, body.Limit, recipients...)
	if err != nil {
		return nil, problem.Unavailablef(err, "list messages of %s", msg.From)
	}

	if len(msgs) == 0 {
		return msg.Reply(StatusMsgType, &StatusBody{RecipientDID: body.RecipientDID}), nil
	}

	reply := msg.Reply(DeliveryMsgType, &DeliveryBody{RecipientDID: body.RecipientDID})

	for _, m := range msgs {
		reply.Attachments = append(reply.Attachments, model.NewJSONAttachment(m.ID, m.Payload))
	}

	logutil.LogDebug(logger, MessagePickup, "deliveryRequest", "delivering messages",
		logutil.CreateKeyValueString("clientDID", msg.From),
		logutil.CreateKeyValueString("count", strconv.Itoa(len(msgs))))

	return reply, nil
}

func (s *Service) handleMessagesReceived(ctx context.Context, msg *model.Message,
	rec *connection.Record) (*model.Message, error) {
	var body MessagesReceivedBody
	if err := msg.DecodeBody(&body); err != nil {
		return nil, problem.New(problem.Malformed, err)
	}

	removed, notRemoved, err := s.messages.DeleteOwned(ctx, body.MessageIDList, rec.Recipients()...)
	if err != nil {
		return nil, problem.Unavailablef(err, "delete messages of %s", msg.From)
	}

	logutil.LogDebug(logger, MessagePickup, "messagesReceived", "acknowledged messages removed",
		logutil.CreateKeyValueString("clientDID", msg.From),
		logutil.CreateKeyValueString("removed", strconv.Itoa(len(removed))),
		logutil.CreateKeyValueString("notRemoved", strconv.Itoa(len(notRemoved))))

	status, err := s.status(ctx, rec, "")
	if err != nil {
		return nil, err
	}

	status.NotRemoved = notRemoved

	return msg.Reply(StatusMsgType, status), nil
}

func (s *Service) status(ctx context.Context, rec *connection.Record, recipientDID string) (*StatusBody, error) {
	stats, err := s.messages.StatsFor(ctx, owned(rec, recipientDID)...)
	if err != nil {
		return nil, problem.Unavailablef(err, "count messages of %s", rec.ClientDID)
	}

	status := &StatusBody{RecipientDID: recipientDID, MessageCount: stats.Count, TotalBytes: stats.TotalBytes}

	if stats.Count > 0 {
		status.OldestReceivedTime = stats.Oldest.Unix()
		status.NewestReceivedTime = stats.Newest.Unix()
		status.LongestWaitedSeconds = int64(s.now().Sub(stats.Oldest) / time.Second)
	}

	return status, nil
}

// owned returns the identifiers a request may read: the one named if the connection owns it, none if it does not,
// all of them if none is named.
func owned(rec *connection.Record, recipientDID string) []string {
	if recipientDID == "" {
		return rec.Recipients()
	}

	if rec.Owns(recipientDID) {
		return []string{recipientDID}
	}

	return nil
}

func repositoryError(err error, format string, args ...interface{}) error {
	switch {
	case errors.Is(err, connection.ErrNotFound):
		return problem.New(problem.Denied, problem.ErrMissingClientConnection)
	case errors.Is(err, connection.ErrInvariant):
		logger.Errorf("connection store invariant broken: %s", err)

		return problem.New(problem.Internal, err)
	default:
		return problem.Unavailablef(err, format, args...)
	}
}
