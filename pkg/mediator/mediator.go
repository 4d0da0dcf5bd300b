/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediator wires storage, repositories, protocols and the inbound pipeline into a running mediator.
package mediator

import (
	"context"
	"fmt"
	"time"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/inbound"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/packer/plain"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/protocol/forward"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/protocol/mediation"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/protocol/pickup"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/registry"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/secrets"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/routedmsg"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr/key"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

var logger = log.New("didcomm-mediator/mediator")

const identityTimeout = 30 * time.Second

// Option configures the mediator.
type Option func(opts *Mediator)

// Mediator owns every component of a running mediator.
type Mediator struct {
	storeProvider  storage.Provider
	storePrefix    string
	retryPolicy    resilience.RetryPolicy
	breakerOpts    []resilience.BreakerOption
	cacheSize      int
	cacheTTL       time.Duration
	seed           []byte
	packers        []packer.Packer
	extraProtocols []registry.Protocol

	connections *connection.Repository
	messages    *routedmsg.Repository
	secrets     *secrets.Store
	creator     *key.Creator
	mediatorDID string
	resolver    vdr.Resolver
	registry    *registry.Registry
	inbound     *inbound.Handler
}

// WithStoreProvider sets the storage backend. The default keeps everything in memory.
func WithStoreProvider(prov storage.Provider) Option {
	return func(opts *Mediator) {
		opts.storeProvider = prov
	}
}

// WithStorePrefix prefixes the name of every store.
func WithStorePrefix(prefix string) Option {
	return func(opts *Mediator) {
		opts.storePrefix = prefix
	}
}

// WithRetryPolicy sets the retry policy of storage and resolver calls.
func WithRetryPolicy(policy resilience.RetryPolicy) Option {
	return func(opts *Mediator) {
		opts.retryPolicy = policy
	}
}

// WithBreakerOptions configures the circuit breakers in front of storage and the resolver.
func WithBreakerOptions(breakerOpts ...resilience.BreakerOption) Option {
	return func(opts *Mediator) {
		opts.breakerOpts = breakerOpts
	}
}

// WithResolverCache sizes the DID document cache.
func WithResolverCache(size int, ttl time.Duration) Option {
	return func(opts *Mediator) {
		opts.cacheSize = size
		opts.cacheTTL = ttl
	}
}

// WithMediatorSeed derives the mediator DID from an ed25519 seed. Without it the DID is random per start.
func WithMediatorSeed(seed []byte) Option {
	return func(opts *Mediator) {
		opts.seed = seed
	}
}

// WithPacker sets the packers of the inbound pipeline, primary first. The default is the plaintext packer.
func WithPacker(primary packer.Packer, additionalPackers ...packer.Packer) Option {
	return func(opts *Mediator) {
		opts.packers = append([]packer.Packer{primary}, additionalPackers...)
	}
}

// WithProtocols loads protocols next to the mediation ones.
func WithProtocols(protocols ...registry.Protocol) Option {
	return func(opts *Mediator) {
		opts.extraProtocols = append(opts.extraProtocols, protocols...)
	}
}

// New builds a mediator. Close releases its storage.
func New(opts ...Option) (*Mediator, error) {
	m := &Mediator{retryPolicy: resilience.DefaultRetryPolicy()}

	for _, opt := range opts {
		opt(m)
	}

	if m.storeProvider == nil {
		m.storeProvider = mem.NewProvider()
	}

	if len(m.packers) == 0 {
		m.packers = []packer.Packer{plain.New()}
	}

	for _, create := range []func() error{
		m.createRepositories,
		m.createIdentity,
		m.createResolver,
		m.loadProtocols,
		m.createInboundHandler,
	} {
		if err := create(); err != nil {
			if closeErr := m.storeProvider.Close(); closeErr != nil {
				logger.Warnf("close storage after failed start: %s", closeErr)
			}

			return nil, err
		}
	}

	logger.Infof("mediator %s ready with protocols %v", m.mediatorDID, m.registry.Protocols())

	return m, nil
}

func (m *Mediator) guard(name string) *resilience.Guard {
	return store.NewGuard(name, m.retryPolicy, m.breakerOpts...)
}

func (m *Mediator) createRepositories() error {
	prov := store.Prefixed(m.storeProvider, m.storePrefix)

	var err error

	m.connections, err = connection.New(prov, m.guard("connection-store"))
	if err != nil {
		return fmt.Errorf("create connection repository: %w", err)
	}

	m.messages, err = routedmsg.New(prov, m.guard("message-store"))
	if err != nil {
		return fmt.Errorf("create message repository: %w", err)
	}

	m.secrets, err = secrets.New(prov, m.guard("secrets-store"))
	if err != nil {
		return fmt.Errorf("create secrets store: %w", err)
	}

	m.creator = key.NewCreator(m.secrets)

	return nil
}

func (m *Mediator) createIdentity() error {
	ctx, cancel := context.WithTimeout(context.Background(), identityTimeout)
	defer cancel()

	did, err := m.creator.CreateEd25519(ctx, m.seed)
	if err != nil {
		return fmt.Errorf("create mediator DID: %w", err)
	}

	m.mediatorDID = did

	return nil
}

func (m *Mediator) createResolver() error {
	policy := m.retryPolicy
	policy.Retryable = vdr.IsFault

	breakerOpts := append([]resilience.BreakerOption{resilience.WithFailurePredicate(vdr.IsFault)}, m.breakerOpts...)
	guard := resilience.NewGuard("resolver", resilience.NewBreaker("resolver", breakerOpts...), policy)

	m.resolver = vdr.NewCachedResolver(vdr.New(vdr.WithVDR(key.New())), guard, m.cacheSize, m.cacheTTL)

	return nil
}

func (m *Mediator) loadProtocols() error {
	mediationSvc, err := mediation.New(m)
	if err != nil {
		return err
	}

	pickupSvc, err := pickup.New(m)
	if err != nil {
		return err
	}

	forwardSvc, err := forward.New(m)
	if err != nil {
		return err
	}

	m.registry = registry.New()

	protocols := append([]registry.Protocol{mediationSvc, pickupSvc, forwardSvc}, m.extraProtocols...)
	if err := m.registry.Load(protocols...); err != nil {
		return fmt.Errorf("load protocols: %w", err)
	}

	return nil
}

func (m *Mediator) createInboundHandler() error {
	h, err := inbound.New(m.registry, m.packers,
		inbound.WithMediatorDID(m.mediatorDID),
		inbound.WithAnonymousTypes(forward.ForwardMsgType),
		inbound.WithRecipientCheck(m.secrets))
	if err != nil {
		return fmt.Errorf("create inbound handler: %w", err)
	}

	m.inbound = h

	return nil
}

// ConnectionRepository returns the connection repository.
func (m *Mediator) ConnectionRepository() *connection.Repository {
	return m.connections
}

// MessageRepository returns the routed message repository.
func (m *Mediator) MessageRepository() *routedmsg.Repository {
	return m.messages
}

// RoutingDIDCreator returns the creator of routing DIDs.
func (m *Mediator) RoutingDIDCreator() vdr.Creator {
	return m.creator
}

// MediatorDID returns the DID of the mediator.
func (m *Mediator) MediatorDID() string {
	return m.mediatorDID
}

// Resolver returns the caching DID resolver.
func (m *Mediator) Resolver() vdr.Resolver {
	return m.resolver
}

// Registry returns the protocol registry.
func (m *Mediator) Registry() *registry.Registry {
	return m.registry
}

// InboundHandler returns the pipeline the transports feed.
func (m *Mediator) InboundHandler() *inbound.Handler {
	return m.inbound
}

// Close releases the storage.
func (m *Mediator) Close() error {
	m.registry.Unload()

	if err := m.storeProvider.Close(); err != nil {
		return fmt.Errorf("failed to close the store: %w", err)
	}

	return nil
}
