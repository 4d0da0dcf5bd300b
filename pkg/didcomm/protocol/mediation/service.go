/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediation implements the mediator side of coordinate-mediation 2.0: granting mediation once per client
// and maintaining the keys the client receives messages for.
package mediation

import (
	"context"
	"errors"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/internal/logutil"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
)

var logger = log.New("didcomm-mediator/mediation")

// constants for coordinate-mediation message types.
const (
	// Coordination is the protocol name.
	Coordination = "coordinate-mediation"

	// CoordinationSpec is the protocol URI prefix.
	CoordinationSpec = "https://didcomm.org/coordinate-mediation/2.0/"

	MediateRequestMsgType        = CoordinationSpec + "mediate-request"
	MediateGrantMsgType          = CoordinationSpec + "mediate-grant"
	MediateDenyMsgType           = CoordinationSpec + "mediate-deny"
	KeylistUpdateMsgType         = CoordinationSpec + "keylist-update"
	KeylistUpdateResponseMsgType = CoordinationSpec + "keylist-update-response"
	KeylistQueryMsgType          = CoordinationSpec + "keylist-query"
	KeylistMsgType               = CoordinationSpec + "keylist"
)

// provider contains dependencies for the mediation protocol.
type provider interface {
	ConnectionRepository() *connection.Repository
	RoutingDIDCreator() vdr.Creator
	MediatorDID() string
}

// Service for coordinate-mediation.
type Service struct {
	connections *connection.Repository
	routingDIDs vdr.Creator
	mediatorDID string
}

// New returns the mediation service.
func New(prov provider) (*Service, error) {
	if prov.ConnectionRepository() == nil || prov.RoutingDIDCreator() == nil {
		return nil, errors.New("mediation: connection repository and routing DID creator are required")
	}

	return &Service{
		connections: prov.ConnectionRepository(),
		routingDIDs: prov.RoutingDIDCreator(),
		mediatorDID: prov.MediatorDID(),
	}, nil
}

// Name of the protocol.
func (s *Service) Name() string {
	return Coordination
}

// MessageTypes handled by the service. keylist-update-response, keylist, mediate-grant and mediate-deny are sent,
// never received, by a mediator.
func (s *Service) MessageTypes() []string {
	return []string{MediateRequestMsgType, KeylistUpdateMsgType, KeylistQueryMsgType}
}

// Accept reports whether msgType is handled by the service.
func (s *Service) Accept(msgType string) bool {
	switch msgType {
	case MediateRequestMsgType, KeylistUpdateMsgType, KeylistQueryMsgType:
		return true
	}

	return false
}

// Handle processes a coordinate-mediation request and returns the reply.
func (s *Service) Handle(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.From == "" {
		return nil, problem.New(problem.Malformed, problem.ErrMissingSenderDID)
	}

	logutil.LogDebug(logger, Coordination, "handle", "received message",
		logutil.CreateKeyValueString("msgType", msg.Type),
		logutil.CreateKeyValueString("msgID", msg.ID))

	switch msg.Type {
	case MediateRequestMsgType:
		return s.handleMediateRequest(ctx, msg)
	case KeylistUpdateMsgType:
		return s.handleKeylistUpdate(ctx, msg)
	case KeylistQueryMsgType:
		return s.handleKeylistQuery(ctx, msg)
	default:
		return nil, problem.Newf(problem.Malformed, "coordinate-mediation: unsupported message type %s", msg.Type)
	}
}

func (s *Service) handleMediateRequest(ctx context.Context, msg *model.Message) (*model.Message, error) {
	var routingDID string

	rec, created, err := s.connections.CreateIfAbsent(ctx, msg.From, func() (*connection.Record, error) {
		var err error

		routingDID, err = s.routingDIDs.Create(ctx)
		if err != nil {
			return nil, err
		}

		return &connection.Record{MediatorDID: s.mediatorDID, RoutingDID: routingDID}, nil
	})
	if err != nil && routingDID != "" {
		s.removeRoutingDID(ctx, routingDID)
	}

	if errors.Is(err, connection.ErrRecipientTaken) {
		logutil.LogInfo(logger, Coordination, "mediateRequest", "client DID is routed elsewhere, denying",
			logutil.CreateKeyValueString("clientDID", msg.From))

		return msg.Reply(MediateDenyMsgType, nil), nil
	}

	if err != nil {
		logutil.LogError(logger, Coordination, "mediateRequest", err.Error(),
			logutil.CreateKeyValueString("clientDID", msg.From))

		return nil, repositoryError(err, "create connection of %s", msg.From)
	}

	if !created {
		logutil.LogInfo(logger, Coordination, "mediateRequest", "mediation already granted, denying",
			logutil.CreateKeyValueString("clientDID", msg.From),
			logutil.CreateKeyValueString("connectionID", rec.ID))

		return msg.Reply(MediateDenyMsgType, nil), nil
	}

	logutil.LogInfo(logger, Coordination, "mediateRequest", "mediation granted",
		logutil.CreateKeyValueString("clientDID", msg.From),
		logutil.CreateKeyValueString("routingDID", rec.RoutingDID))

	return msg.Reply(MediateGrantMsgType, &GrantBody{RoutingDID: rec.RoutingDID}), nil
}

func (s *Service) handleKeylistUpdate(ctx context.Context, msg *model.Message) (*model.Message, error) {
	var body KeylistUpdateBody
	if err := msg.DecodeBody(&body); err != nil {
		return nil, problem.New(problem.Malformed, err)
	}

	updates := make([]connection.KeyUpdate, len(body.Updates))
	for i, u := range body.Updates {
		updates[i] = connection.KeyUpdate{Action: u.Action, RecipientDID: u.RecipientDID}
	}

	results, err := s.connections.UpdateKeylist(ctx, msg.From, updates)
	if err != nil {
		return nil, repositoryError(err, "update keylist of %s", msg.From)
	}

	resp := KeylistUpdateResponseBody{Updated: make([]UpdateResponse, len(results))}
	for i, r := range results {
		resp.Updated[i] = UpdateResponse{RecipientDID: r.RecipientDID, Action: r.Action, Result: r.Result}
	}

	logutil.LogDebug(logger, Coordination, "keylistUpdate", "keylist updated",
		logutil.CreateKeyValueString("clientDID", msg.From))

	return msg.Reply(KeylistUpdateResponseMsgType, &resp), nil
}

func (s *Service) handleKeylistQuery(ctx context.Context, msg *model.Message) (*model.Message, error) {
	var body KeylistQueryBody
	if err := msg.DecodeBody(&body); err != nil {
		return nil, problem.New(problem.Malformed, err)
	}

	rec, err := s.connections.FindByClientDID(ctx, msg.From)
	if err != nil {
		return nil, repositoryError(err, "find connection of %s", msg.From)
	}

	keys := rec.Keylist
	resp := KeylistBody{Keys: []Key{}}

	if body.Paginate != nil {
		if body.Paginate.Offset < 0 || body.Paginate.Limit < 0 {
			return nil, problem.Newf(problem.Malformed, "keylist-query: negative pagination")
		}

		offset := body.Paginate.Offset
		if offset > len(keys) {
			offset = len(keys)
		}

		end := len(keys)
		if body.Paginate.Limit > 0 && offset+body.Paginate.Limit < end {
			end = offset + body.Paginate.Limit
		}

		keys = keys[offset:end]
		resp.Pagination = &Pagination{Count: len(keys), Offset: offset, Remaining: len(rec.Keylist) - end}
	}

	for _, k := range keys {
		resp.Keys = append(resp.Keys, Key{RecipientDID: k})
	}

	return msg.Reply(KeylistMsgType, &resp), nil
}

// removeRoutingDID drops the key of a routing DID no connection was stored for.
func (s *Service) removeRoutingDID(ctx context.Context, did string) {
	if err := s.routingDIDs.Remove(ctx, did); err != nil {
		logutil.LogError(logger, Coordination, "mediateRequest", "remove unused routing DID: "+err.Error(),
			logutil.CreateKeyValueString("routingDID", did))
	}
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
