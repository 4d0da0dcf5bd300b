/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package plain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer"
)

func TestPacker(t *testing.T) {
	ctx := context.Background()
	p := New()

	require.Equal(t, "application/didcomm-plain+json", p.MediaType())

	t.Run("pack and unpack", func(t *testing.T) {
		msg := model.NewMessage("https://didcomm.org/trust-ping/2.0/ping", map[string]interface{}{"response_requested": true})
		msg.From = "did:example:alice"

		b, err := p.Pack(ctx, msg, "did:example:mediator")
		require.NoError(t, err)
		require.Empty(t, msg.To)

		got, err := p.Unpack(ctx, b)
		require.NoError(t, err)
		require.Equal(t, msg.ID, got.ID)
		require.Equal(t, msg.From, got.From)
		require.Equal(t, []string{"did:example:mediator"}, got.To)
		require.Equal(t, true, got.Body["response_requested"])

		b, err = p.Pack(ctx, got, "did:example:mediator")
		require.NoError(t, err)

		got, err = p.Unpack(ctx, b)
		require.NoError(t, err)
		require.Len(t, got.To, 1)
	})

	t.Run("unpack without body", func(t *testing.T) {
		got, err := p.Unpack(ctx, []byte(`{"id":"1","type":"t"}`))
		require.NoError(t, err)
		require.NotNil(t, got.Body)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, envelope := range []string{`not json`, `{"type":"t"}`, `{"id":"1"}`, `[]`} {
			_, err := p.Unpack(ctx, []byte(envelope))
			require.ErrorIs(t, err, packer.ErrMalformedEnvelope, envelope)
		}

		_, err := p.Pack(ctx, nil, "did:example:bob")
		require.Error(t, err)
	})
}
