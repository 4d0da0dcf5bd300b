/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package restapi collects the REST endpoints of the mediator besides the DIDComm ingress.
package restapi

import (
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/registry"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation/admin"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation/wellknown"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
)

type allOpts struct {
	publicEndpoint string
	accept         []string
}

// Opt represents a REST Api option.
type Opt func(opts *allOpts)

// WithPublicEndpoint sets the messaging service endpoint advertised in the mediator DID document.
func WithPublicEndpoint(endpoint string, accept ...string) Opt {
	return func(opts *allOpts) {
		opts.publicEndpoint = endpoint
		opts.accept = accept
	}
}

type provider interface {
	MediatorDID() string
	Resolver() vdr.Resolver
	Registry() *registry.Registry
	ConnectionRepository() *connection.Repository
}

// New returns new controller REST API instance.
func New(ctx provider, opts ...Opt) (*Controller, error) {
	restAPIOpts := &allOpts{}
	// Apply options
	for _, opt := range opts {
		opt(restAPIOpts)
	}

	adminOp, err := admin.New(ctx)
	if err != nil {
		return nil, err
	}

	discovery, err := wellknown.New(ctx, restAPIOpts.publicEndpoint, restAPIOpts.accept)
	if err != nil {
		return nil, err
	}

	return &Controller{admin: adminOp.GetRESTHandlers(), public: discovery.GetRESTHandlers()}, nil
}

// Controller contains handlers for controller REST API.
type Controller struct {
	admin  []operation.Handler
	public []operation.Handler
}

// GetOperations returns all controller REST API endpoints.
func (c *Controller) GetOperations() []operation.Handler {
	return append(append([]operation.Handler(nil), c.public...), c.admin...)
}

// AdminOperations returns the endpoints that need the admin token.
func (c *Controller) AdminOperations() []operation.Handler {
	return c.admin
}

// PublicOperations returns the endpoints open to anyone.
func (c *Controller) PublicOperations() []operation.Handler {
	return c.public
}
