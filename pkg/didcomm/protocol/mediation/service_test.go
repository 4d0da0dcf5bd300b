/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mock"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/problem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	alice       = "did:example:alice"
	bob         = "did:example:bob"
	mediatorDID = "did:key:z6MkmediatorKey"
)

type fakeCreator struct {
	n       int32
	err     error
	mu      sync.Mutex
	removed []string
}

func (c *fakeCreator) Create(context.Context) (string, error) {
	if c.err != nil {
		return "", c.err
	}

	return fmt.Sprintf("did:key:z6LSrouting%d", atomic.AddInt32(&c.n, 1)), nil
}

func (c *fakeCreator) Remove(_ context.Context, did string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removed = append(c.removed, did)

	return nil
}

type mockProvider struct {
	connections *connection.Repository
	creator     vdr.Creator
}

func (p *mockProvider) ConnectionRepository() *connection.Repository { return p.connections }

func (p *mockProvider) RoutingDIDCreator() vdr.Creator { return p.creator }

func (p *mockProvider) MediatorDID() string { return mediatorDID }

func newService(t *testing.T, sp storage.Provider, guard *resilience.Guard, creator vdr.Creator) *Service {
	t.Helper()

	if guard == nil {
		guard = store.NewGuard("test", resilience.RetryPolicy{MaxAttempts: 1})
	}

	conns, err := connection.New(sp, guard)
	require.NoError(t, err)

	svc, err := New(&mockProvider{connections: conns, creator: creator})
	require.NoError(t, err)

	return svc
}

func request(msgType, from string, body interface{}) *model.Message {
	msg := model.NewMessage(msgType, body)
	msg.From = from
	msg.To = []string{mediatorDID}

	return msg
}

func keylistUpdate(from string, updates ...Update) *model.Message {
	return request(KeylistUpdateMsgType, from, &KeylistUpdateBody{Updates: updates})
}

func requireKind(t *testing.T, err error, kind problem.Kind) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, kind, problem.KindOf(err), err.Error())
}

func TestNew(t *testing.T) {
	_, err := New(&mockProvider{})
	require.Error(t, err)

	svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})
	require.Equal(t, Coordination, svc.Name())
	require.Len(t, svc.MessageTypes(), 3)

	for _, msgType := range svc.MessageTypes() {
		require.True(t, svc.Accept(msgType))
	}

	require.False(t, svc.Accept(MediateGrantMsgType))
	require.False(t, svc.Accept(KeylistMsgType))
}

func TestService_MediateRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("grant then idempotent deny", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		req := request(MediateRequestMsgType, alice, nil)
		reply, err := svc.Handle(ctx, req)
		require.NoError(t, err)
		require.Equal(t, MediateGrantMsgType, reply.Type)
		require.Equal(t, req.ID, reply.ThID)
		require.Equal(t, []string{alice}, reply.To)

		var grant GrantBody
		require.NoError(t, reply.DecodeBody(&grant))
		require.Equal(t, "did:key:z6LSrouting1", grant.RoutingDID)

		before, err := svc.connections.FindByClientDID(ctx, alice)
		require.NoError(t, err)

		reply, err = svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		require.NoError(t, err)
		require.Equal(t, MediateDenyMsgType, reply.Type)

		after, err := svc.connections.FindByClientDID(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, before, after)
		require.Equal(t, mediatorDID, after.MediatorDID)
	})

	t.Run("concurrent requests grant once", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		var (
			wg     sync.WaitGroup
			grants int32
		)

		for i := 0; i < 10; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				reply, err := svc.Handle(ctx, request(MediateRequestMsgType, bob, nil))
				if err == nil && reply.Type == MediateGrantMsgType {
					atomic.AddInt32(&grants, 1)
				}
			}()
		}

		wg.Wait()
		require.EqualValues(t, 1, grants)
	})

	t.Run("missing sender", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		_, err := svc.Handle(ctx, request(MediateRequestMsgType, "", nil))
		requireKind(t, err, problem.Malformed)
		require.ErrorIs(t, err, problem.ErrMissingSenderDID)
	})

	t.Run("routing DID creation fails", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{err: errors.New("no entropy")})

		_, err := svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		requireKind(t, err, problem.Unavailable)
		require.ErrorContains(t, err, "no entropy")

		_, err = svc.connections.FindByClientDID(ctx, alice)
		require.ErrorIs(t, err, connection.ErrNotFound)
	})

	t.Run("client DID routed by another connection", func(t *testing.T) {
		creator := &fakeCreator{}
		svc := newService(t, mem.NewProvider(), nil, creator)
		key := "did:example:k"

		_, err := svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		require.NoError(t, err)

		reply, err := svc.Handle(ctx, keylistUpdate(alice, Update{RecipientDID: key, Action: connection.ActionAdd}))
		require.NoError(t, err)
		require.Equal(t, KeylistUpdateResponseMsgType, reply.Type)

		reply, err = svc.Handle(ctx, request(MediateRequestMsgType, key, nil))
		require.NoError(t, err)
		require.Equal(t, MediateDenyMsgType, reply.Type)
		require.EqualValues(t, 1, atomic.LoadInt32(&creator.n))

		_, err = svc.connections.FindByClientDID(ctx, key)
		require.ErrorIs(t, err, connection.ErrNotFound)

		owner, err := svc.connections.FindByRecipient(ctx, key)
		require.NoError(t, err)
		require.Equal(t, alice, owner.ClientDID)
	})

	t.Run("unsaved connection drops its routing DID", func(t *testing.T) {
		sp := mock.NewStoreProvider()
		creator := &fakeCreator{}
		svc := newService(t, sp, nil, creator)

		sp.Store(connection.Namespace).ErrBatch = errors.New("disk full")

		_, err := svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		requireKind(t, err, problem.Unavailable)
		require.Equal(t, []string{"did:key:z6LSrouting1"}, creator.removed)
	})

	t.Run("storage down opens the breaker", func(t *testing.T) {
		sp := mock.NewStoreProvider()
		guard := store.NewGuard("test", resilience.RetryPolicy{MaxAttempts: 1},
			resilience.WithFailureThreshold(1))
		svc := newService(t, sp, guard, &fakeCreator{})

		sp.Store(connection.Namespace).ErrQuery = errors.New("disk full")

		_, err := svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		requireKind(t, err, problem.Unavailable)
		require.Equal(t, problem.CodeUnavailable, problem.CodeOf(err))

		_, err = svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		requireKind(t, err, problem.Unavailable)
		require.ErrorIs(t, err, resilience.ErrCircuitOpen)
		require.Equal(t, problem.CodeTemporarilyUnavailable, problem.CodeOf(err))
	})

	t.Run("unsupported type", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		_, err := svc.Handle(ctx, request(MediateGrantMsgType, alice, nil))
		requireKind(t, err, problem.Malformed)
	})
}

func TestService_KeylistUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("ownership", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		for _, client := range []string{alice, bob} {
			_, err := svc.Handle(ctx, request(MediateRequestMsgType, client, nil))
			require.NoError(t, err)
		}

		reply, err := svc.Handle(ctx, keylistUpdate(alice,
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k1"},
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k1"},
			Update{Action: connection.ActionRemove, RecipientDID: "did:key:k2"},
		))
		require.NoError(t, err)
		require.Equal(t, KeylistUpdateResponseMsgType, reply.Type)

		var resp KeylistUpdateResponseBody
		require.NoError(t, reply.DecodeBody(&resp))
		require.Equal(t, []UpdateResponse{
			{RecipientDID: "did:key:k1", Action: connection.ActionAdd, Result: connection.ResultSuccess},
			{RecipientDID: "did:key:k1", Action: connection.ActionAdd, Result: connection.ResultNoChange},
			{RecipientDID: "did:key:k2", Action: connection.ActionRemove, Result: connection.ResultNoChange},
		}, resp.Updated)

		reply, err = svc.Handle(ctx, keylistUpdate(bob,
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k1"},
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k3"},
		))
		require.NoError(t, err)

		resp = KeylistUpdateResponseBody{}
		require.NoError(t, reply.DecodeBody(&resp))
		require.Equal(t, connection.ResultClientError, resp.Updated[0].Result)
		require.Equal(t, connection.ResultSuccess, resp.Updated[1].Result)

		owner, err := svc.connections.FindByRecipient(ctx, "did:key:k1")
		require.NoError(t, err)
		require.Equal(t, alice, owner.ClientDID)

		reply, err = svc.Handle(ctx, keylistUpdate(alice,
			Update{Action: connection.ActionRemove, RecipientDID: "did:key:k1"}))
		require.NoError(t, err)

		resp = KeylistUpdateResponseBody{}
		require.NoError(t, reply.DecodeBody(&resp))
		require.Equal(t, connection.ResultSuccess, resp.Updated[0].Result)

		_, err = svc.connections.FindByRecipient(ctx, "did:key:k1")
		require.ErrorIs(t, err, connection.ErrNotFound)
	})

	t.Run("no connection", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		_, err := svc.Handle(ctx, keylistUpdate(alice,
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k1"}))
		requireKind(t, err, problem.Denied)
		require.ErrorIs(t, err, problem.ErrMissingClientConnection)
	})

	t.Run("persistence failure is per key", func(t *testing.T) {
		sp := mock.NewStoreProvider()
		svc := newService(t, sp, nil, &fakeCreator{})

		_, err := svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
		require.NoError(t, err)

		sp.Store(connection.Namespace).ErrBatch = errors.New("write failed")

		reply, err := svc.Handle(ctx, keylistUpdate(alice,
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k1"},
			Update{Action: connection.ActionAdd, RecipientDID: "did:key:k2"},
		))
		require.NoError(t, err)

		var resp KeylistUpdateResponseBody
		require.NoError(t, reply.DecodeBody(&resp))
		require.Len(t, resp.Updated, 2)

		for _, u := range resp.Updated {
			require.Equal(t, connection.ResultServerError, u.Result)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

		msg := request(KeylistUpdateMsgType, alice, nil)
		msg.Body = map[string]interface{}{"updates": "all of them"}

		_, err := svc.Handle(ctx, msg)
		requireKind(t, err, problem.Malformed)
	})
}

func TestService_KeylistQuery(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, mem.NewProvider(), nil, &fakeCreator{})

	_, err := svc.Handle(ctx, request(MediateRequestMsgType, alice, nil))
	require.NoError(t, err)

	_, err = svc.Handle(ctx, keylistUpdate(alice,
		Update{Action: connection.ActionAdd, RecipientDID: "did:key:k1"},
		Update{Action: connection.ActionAdd, RecipientDID: "did:key:k2"},
		Update{Action: connection.ActionAdd, RecipientDID: "did:key:k3"},
	))
	require.NoError(t, err)

	t.Run("all keys", func(t *testing.T) {
		reply, err := svc.Handle(ctx, request(KeylistQueryMsgType, alice, nil))
		require.NoError(t, err)
		require.Equal(t, KeylistMsgType, reply.Type)

		var body KeylistBody
		require.NoError(t, reply.DecodeBody(&body))
		require.Equal(t, []Key{{"did:key:k1"}, {"did:key:k2"}, {"did:key:k3"}}, body.Keys)
		require.Nil(t, body.Pagination)
	})

	t.Run("paginated", func(t *testing.T) {
		reply, err := svc.Handle(ctx, request(KeylistQueryMsgType, alice,
			&KeylistQueryBody{Paginate: &Paginate{Limit: 1, Offset: 1}}))
		require.NoError(t, err)

		var body KeylistBody
		require.NoError(t, reply.DecodeBody(&body))
		require.Equal(t, []Key{{"did:key:k2"}}, body.Keys)
		require.Equal(t, &Pagination{Count: 1, Offset: 1, Remaining: 1}, body.Pagination)

		reply, err = svc.Handle(ctx, request(KeylistQueryMsgType, alice,
			&KeylistQueryBody{Paginate: &Paginate{Offset: 10}}))
		require.NoError(t, err)

		body = KeylistBody{}
		require.NoError(t, reply.DecodeBody(&body))
		require.Empty(t, body.Keys)
		require.Equal(t, &Pagination{Count: 0, Offset: 3, Remaining: 0}, body.Pagination)
	})

	t.Run("negative pagination", func(t *testing.T) {
		_, err := svc.Handle(ctx, request(KeylistQueryMsgType, alice,
			&KeylistQueryBody{Paginate: &Paginate{Limit: -1}}))
		requireKind(t, err, problem.Malformed)
	})

	t.Run("no connection", func(t *testing.T) {
		_, err := svc.Handle(ctx, request(KeylistQueryMsgType, bob, nil))
		requireKind(t, err, problem.Denied)
	})
}
