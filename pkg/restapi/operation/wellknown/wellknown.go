/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wellknown serves the mediator DID document and the health check.
package wellknown

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/registry"
	resterrors "github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/errors"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
)

var logger = log.New("didcomm-mediator/rest/wellknown")

const (
	// DIDDocumentPath serves the mediator DID document.
	DIDDocumentPath = "/.well-known/did.json"
	// HealthPath answers 200 while the protocol registry is loaded.
	HealthPath = "/health"

	// ServiceType is the type of the messaging service entry.
	ServiceType = "DIDCommMessaging"
)

// Error codes.
const (
	// ResolveDIDErrorCode is for a mediator DID that does not resolve.
	ResolveDIDErrorCode = resterrors.Code(iota + resterrors.WellKnown)
	// NotReadyErrorCode is for health checks before the registry is loaded.
	NotReadyErrorCode
)

type provider interface {
	MediatorDID() string
	Resolver() vdr.Resolver
	Registry() *registry.Registry
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status    string   `json:"status"`
	Protocols []string `json:"protocols"`
}

// Operation serves the discovery endpoints.
type Operation struct {
	ctx      provider
	endpoint string
	accept   []string
	handlers []operation.Handler
}

// New returns the discovery operation. endpoint and accept describe the messaging service added to the DID document.
func New(ctx provider, endpoint string, accept []string) (*Operation, error) {
	if ctx == nil || ctx.Resolver() == nil || ctx.Registry() == nil {
		return nil, errors.New("wellknown: resolver and registry are required")
	}

	o := &Operation{ctx: ctx, endpoint: endpoint, accept: accept}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []operation.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []operation.Handler{
		operation.NewHTTPHandler(DIDDocumentPath, http.MethodGet, o.DIDDocument),
		operation.NewHTTPHandler(HealthPath, http.MethodGet, o.Health),
	}
}

// DIDDocument writes the resolved mediator DID document with its messaging service.
func (o *Operation) DIDDocument(rw http.ResponseWriter, req *http.Request) {
	did := o.ctx.MediatorDID()

	doc, err := o.ctx.Resolver().Resolve(req.Context(), did)
	if err != nil {
		logger.Errorf("resolve mediator DID %s: %s", did, err)
		resterrors.SendHTTPInternalServerError(rw, ResolveDIDErrorCode, fmt.Errorf("resolve mediator DID: %w", err))

		return
	}

	out := *doc

	if o.endpoint != "" {
		out.Service = append(append([]vdr.Service(nil), doc.Service...), vdr.Service{
			ID:              did + "#didcomm",
			Type:            ServiceType,
			ServiceEndpoint: o.endpoint,
			Accept:          o.accept,
		})
	}

	writeJSON(rw, &out)
}

// Health answers 200 with the loaded protocols, or 503 before the registry is loaded.
func (o *Operation) Health(rw http.ResponseWriter, _ *http.Request) {
	reg := o.ctx.Registry()
	if !reg.Loaded() {
		resterrors.SendHTTPServiceUnavailable(rw, NotReadyErrorCode, registry.ErrUnloaded)

		return
	}

	writeJSON(rw, &HealthResponse{Status: "ok", Protocols: reg.Protocols()})
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}
