/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package inbound runs received envelopes through unpacking, dispatch and packing of the reply.
package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/registry"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/internal/logutil"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/secrets"
)

var logger = log.New("didcomm-mediator/inbound")

const handlerName = "inbound"

var (
	// ErrUnsupportedMediaType is returned for envelopes no packer can open.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrNotAddressedToMediator is returned for messages whose to field names none of the mediator's DIDs.
	ErrNotAddressedToMediator = errors.New("message is not addressed to this mediator")
)

// Option configures a Handler.
type Option func(h *Handler)

// WithAnonymousTypes lets messages of types be handled without a from field.
func WithAnonymousTypes(types ...string) Option {
	return func(h *Handler) {
		for _, t := range types {
			h.anonymous[t] = struct{}{}
		}
	}
}

// WithMediatorDID sets the sender of replies and problem reports.
func WithMediatorDID(did string) Option {
	return func(h *Handler) {
		h.mediatorDID = did
	}
}

// WithRecipientCheck rejects messages addressed only to DIDs that are neither the mediator DID nor held by keys.
func WithRecipientCheck(keys secrets.Resolver) Option {
	return func(h *Handler) {
		h.keys = keys
	}
}

// Handler implements transport.InboundHandler.
type Handler struct {
	registry    *registry.Registry
	packers     map[string]packer.Packer
	mediaTypes  []string
	anonymous   map[string]struct{}
	mediatorDID string
	keys        secrets.Resolver
}

// New returns a handler dispatching to reg. The first packer is the default one.
func New(reg *registry.Registry, packers []packer.Packer, opts ...Option) (*Handler, error) {
	if reg == nil || len(packers) == 0 {
		return nil, errors.New("inbound: a registry and at least one packer are required")
	}

	h := &Handler{registry: reg, packers: map[string]packer.Packer{}, anonymous: map[string]struct{}{}}

	for _, p := range packers {
		if _, ok := h.packers[p.MediaType()]; ok {
			return nil, fmt.Errorf("inbound: two packers for %s", p.MediaType())
		}

		h.packers[p.MediaType()] = p
		h.mediaTypes = append(h.mediaTypes, p.MediaType())
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// MediaTypes returns the media types of the packers.
func (h *Handler) MediaTypes() []string {
	return append([]string(nil), h.mediaTypes...)
}

// HandleInbound unpacks envelope, dispatches the message and packs the reply for its sender.
func (h *Handler) HandleInbound(ctx context.Context, mediaType string, envelope []byte) (*transport.Reply, error) {
	p, ok := h.packers[mediaType]
	if !ok {
		return nil, problem.Newf(problem.Malformed, "%w: %s", ErrUnsupportedMediaType, mediaType)
	}

	msg, err := p.Unpack(ctx, envelope)
	if err != nil {
		return h.fail(ctx, p, nil, problem.New(problem.Malformed, err))
	}

	if err := h.validate(ctx, msg); err != nil {
		return h.fail(ctx, p, msg, err)
	}

	reply, err := h.registry.Dispatch(ctx, msg.Type, msg)
	if err != nil {
		return h.fail(ctx, p, msg, classify(err))
	}

	if reply == nil {
		return nil, nil
	}

	if reply.From == "" {
		reply.From = h.mediatorDID
	}

	packed, err := p.Pack(ctx, reply, msg.From)
	if err != nil {
		logutil.LogError(logger, handlerName, "pack", err.Error(), logutil.CreateKeyValueString("msgID", msg.ID))

		return nil, problem.New(problem.Internal, err)
	}

	return &transport.Reply{MediaType: p.MediaType(), Payload: packed}, nil
}

func (h *Handler) validate(ctx context.Context, msg *model.Message) error {
	if _, ok := h.anonymous[msg.Type]; !ok && msg.From == "" {
		return problem.New(problem.Malformed, problem.ErrMissingSenderDID)
	}

	if h.keys == nil || len(msg.To) == 0 {
		return nil
	}

	for _, to := range msg.To {
		if to != "" && to == h.mediatorDID {
			return nil
		}

		_, err := h.keys.Find(ctx, to)
		if err == nil {
			return nil
		}

		if !errors.Is(err, secrets.ErrNotFound) {
			return problem.Unavailablef(err, "look up keys of %s", to)
		}
	}

	return problem.Newf(problem.Denied, "%w: %v", ErrNotAddressedToMediator, msg.To)
}

// fail packs a problem report about err for the sender of msg, if known.
func (h *Handler) fail(ctx context.Context, p packer.Packer, msg *model.Message, err error) (*transport.Reply, error) {
	var (
		cause, thread, sender string
		fields                []string
	)

	if msg != nil {
		cause, thread, sender = msg.ID, msg.ThID, msg.From
		fields = append(fields, logutil.CreateKeyValueString("msgID", msg.ID),
			logutil.CreateKeyValueString("msgType", msg.Type))
	}

	kind := problem.KindOf(err)
	if kind == problem.Internal {
		logutil.LogError(logger, handlerName, "handle", err.Error(), fields...)
	} else {
		logutil.LogDebug(logger, handlerName, "handle", fmt.Sprintf("rejected as %s: %s", kind, err), fields...)
	}

	report := model.NewProblemReport(problem.CodeOf(err), comment(kind, err), cause, thread)
	report.From = h.mediatorDID

	if sender != "" {
		report.To = []string{sender}
	}

	packed, packErr := p.Pack(ctx, report, sender)
	if packErr != nil {
		logger.Warnf("pack problem report: %s", packErr)

		return nil, err
	}

	return &transport.Reply{MediaType: p.MediaType(), Payload: packed}, err
}

func classify(err error) error {
	switch {
	case errors.Is(err, registry.ErrUnknownType):
		return problem.New(problem.Malformed, err)
	case errors.Is(err, registry.ErrUnloaded):
		return problem.New(problem.Unavailable, err)
	default:
		return err
	}
}

// comment keeps internal failure detail out of reports.
func comment(kind problem.Kind, err error) string {
	if kind == problem.Internal {
		return "internal error"
	}

	return err.Error()
}
