/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer/plain"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/registry"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/transport"
	packerMocks "github.com/adorsys/didcomm-mediator-rs-sub002/pkg/internal/gomocks/didcomm/packer"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/secrets"
)

const (
	pingType     = "https://didcomm.org/trust-ping/2.0/ping"
	responseType = "https://didcomm.org/trust-ping/2.0/ping-response"
	noticeType   = "https://didcomm.org/notice/1.0/notice"
	mediatorDID  = "did:key:z6Mkmediator"
	alice        = "did:example:alice"
)

type pingProtocol struct {
	err error
}

func (p *pingProtocol) Name() string { return "trust-ping" }

func (p *pingProtocol) MessageTypes() []string { return []string{pingType, noticeType} }

func (p *pingProtocol) Accept(t string) bool { return t == pingType || t == noticeType }

func (p *pingProtocol) Handle(_ context.Context, msg *model.Message) (*model.Message, error) {
	if p.err != nil {
		return nil, p.err
	}

	if msg.Type == noticeType {
		return nil, nil
	}

	return msg.Reply(responseType, nil), nil
}

type keys map[string]error

func (k keys) Find(_ context.Context, kid string) (*secrets.KeyMaterial, error) {
	if err, ok := k[kid]; ok {
		if err != nil {
			return nil, err
		}

		return &secrets.KeyMaterial{KID: kid}, nil
	}

	return nil, fmt.Errorf("%w: %s", secrets.ErrNotFound, kid)
}

func newHandler(t *testing.T, protocol registry.Protocol, opts ...Option) *Handler {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Load(protocol))

	h, err := New(reg, []packer.Packer{plain.New()}, append([]Option{WithMediatorDID(mediatorDID)}, opts...)...)
	require.NoError(t, err)

	return h
}

func envelope(t *testing.T, msgType, from string, to ...string) []byte {
	t.Helper()

	msg := model.NewMessage(msgType, nil)
	msg.From = from
	msg.To = to

	b, err := json.Marshal(msg)
	require.NoError(t, err)

	return b
}

func unpack(t *testing.T, reply *transport.Reply) *model.Message {
	t.Helper()

	require.NotNil(t, reply)
	require.Equal(t, transport.MediaTypePlaintext, reply.MediaType)

	msg, err := plain.New().Unpack(context.Background(), reply.Payload)
	require.NoError(t, err)

	return msg
}

func reportCode(t *testing.T, reply *transport.Reply) string {
	t.Helper()

	msg := unpack(t, reply)
	require.Equal(t, model.ProblemReportType, msg.Type)

	var report model.ProblemReport
	require.NoError(t, msg.DecodeBody(&report))

	return report.Code
}

func TestNew(t *testing.T) {
	_, err := New(nil, []packer.Packer{plain.New()})
	require.Error(t, err)

	_, err = New(registry.New(), nil)
	require.Error(t, err)

	_, err = New(registry.New(), []packer.Packer{plain.New(), plain.New()})
	require.ErrorContains(t, err, "two packers")

	h, err := New(registry.New(), []packer.Packer{plain.New()})
	require.NoError(t, err)
	require.Equal(t, []string{transport.MediaTypePlaintext}, h.MediaTypes())
}

func TestHandler_HandleInbound(t *testing.T) {
	ctx := context.Background()

	t.Run("reply is packed for the sender", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{})

		reply, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice, mediatorDID))
		require.NoError(t, err)

		msg := unpack(t, reply)
		require.Equal(t, responseType, msg.Type)
		require.Equal(t, mediatorDID, msg.From)
		require.Equal(t, []string{alice}, msg.To)
	})

	t.Run("no reply", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{})

		reply, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, noticeType, alice))
		require.NoError(t, err)
		require.Nil(t, reply)
	})

	t.Run("unsupported media type", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{})

		reply, err := h.HandleInbound(ctx, "text/plain", envelope(t, pingType, alice))
		require.ErrorIs(t, err, ErrUnsupportedMediaType)
		require.Nil(t, reply)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{})

		reply, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, []byte("{"))
		require.ErrorIs(t, err, packer.ErrMalformedEnvelope)
		require.Equal(t, problem.Malformed, problem.KindOf(err))
		require.Equal(t, problem.CodeMalformed, reportCode(t, reply))
	})

	t.Run("missing sender", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{})

		reply, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, ""))
		require.ErrorIs(t, err, problem.ErrMissingSenderDID)
		require.Equal(t, problem.CodeMalformed, reportCode(t, reply))

		h = newHandler(t, &pingProtocol{}, WithAnonymousTypes(noticeType))

		_, err = h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, noticeType, ""))
		require.NoError(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{})

		reply, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, "https://didcomm.org/x/1.0/y", alice))
		require.ErrorIs(t, err, registry.ErrUnknownType)
		require.Equal(t, problem.Malformed, problem.KindOf(err))

		msg := unpack(t, reply)
		require.Equal(t, []string{alice}, msg.To)
		require.NotEmpty(t, msg.PThID)
	})

	t.Run("handler errors keep their kind", func(t *testing.T) {
		for _, tc := range []struct {
			err  error
			kind problem.Kind
			code string
		}{
			{problem.New(problem.Denied, problem.ErrMissingClientConnection), problem.Denied, problem.CodeDenied},
			{resilience.ErrCircuitOpen, problem.Unavailable, problem.CodeTemporarilyUnavailable},
			{errors.New("nil map"), problem.Internal, problem.CodeInternal},
		} {
			h := newHandler(t, &pingProtocol{err: tc.err})

			reply, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice))
			require.Equal(t, tc.kind, problem.KindOf(err))
			require.Equal(t, tc.code, reportCode(t, reply))
		}
	})

	t.Run("internal detail stays out of the report", func(t *testing.T) {
		h := newHandler(t, &pingProtocol{err: errors.New("password=hunter2")})

		reply, _ := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice))

		var report model.ProblemReport
		require.NoError(t, unpack(t, reply).DecodeBody(&report))
		require.NotContains(t, report.Comment, "hunter2")
	})

	t.Run("unloaded registry", func(t *testing.T) {
		h, err := New(registry.New(), []packer.Packer{plain.New()})
		require.NoError(t, err)

		_, err = h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice))
		require.Equal(t, problem.Unavailable, problem.KindOf(err))
	})
}

func TestHandler_RecipientCheck(t *testing.T) {
	ctx := context.Background()
	routing := "did:key:z6LSrouting"
	h := newHandler(t, &pingProtocol{}, WithRecipientCheck(keys{routing: nil, "did:key:broken": errors.New("db down")}))

	_, err := h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice, mediatorDID))
	require.NoError(t, err)

	_, err = h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice, "did:key:other", routing))
	require.NoError(t, err)

	_, err = h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice))
	require.NoError(t, err)

	_, err = h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice, "did:key:other"))
	require.ErrorIs(t, err, ErrNotAddressedToMediator)
	require.Equal(t, problem.Denied, problem.KindOf(err))

	_, err = h.HandleInbound(ctx, transport.MediaTypePlaintext, envelope(t, pingType, alice, "did:key:broken"))
	require.Equal(t, problem.Unavailable, problem.KindOf(err))
}

func TestHandler_PackFailures(t *testing.T) {
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	msg := model.NewMessage(pingType, nil)
	msg.From = alice

	p := packerMocks.NewMockPacker(ctrl)
	p.EXPECT().MediaType().Return("application/test").AnyTimes()
	p.EXPECT().Unpack(gomock.Any(), []byte("envelope")).Return(msg, nil).Times(2)
	p.EXPECT().Pack(gomock.Any(), gomock.Any(), alice).Return(nil, errors.New("no key agreement key")).Times(2)

	reg := registry.New()
	require.NoError(t, reg.Load(&pingProtocol{}))

	h, err := New(reg, []packer.Packer{p})
	require.NoError(t, err)

	reply, err := h.HandleInbound(ctx, "application/test", []byte("envelope"))
	require.Nil(t, reply)
	require.Equal(t, problem.Internal, problem.KindOf(err))
	require.ErrorContains(t, err, "no key agreement key")

	require.NoError(t, reg.Load(&pingProtocol{err: problem.New(problem.Denied, errors.New("no"))}))

	reply, err = h.HandleInbound(ctx, "application/test", []byte("envelope"))
	require.Nil(t, reply)
	require.Equal(t, problem.Denied, problem.KindOf(err))
}
