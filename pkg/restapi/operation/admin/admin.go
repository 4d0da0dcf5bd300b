/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package admin exposes the mediation connections for inspection.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	resterrors "github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/errors"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/restapi/operation"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store/connection"
)

var logger = log.New("didcomm-mediator/rest/admin")

const (
	// ConnectionsPath lists every connection.
	ConnectionsPath = "/admin/connections"
	// ConnectionPath returns the connection of one client DID.
	ConnectionPath = ConnectionsPath + "/{did}"
)

// Error codes.
const (
	// InvalidRequestErrorCode is typically a code for invalid requests.
	InvalidRequestErrorCode = resterrors.Code(iota + resterrors.Admin)
	// ConnectionNotFoundErrorCode is for a client DID without connection.
	ConnectionNotFoundErrorCode
	// QueryConnectionsErrorCode is for failures of the connection store.
	QueryConnectionsErrorCode
)

type provider interface {
	ConnectionRepository() *connection.Repository
}

// ConnectionsResponse is the body of the list operation.
type ConnectionsResponse struct {
	Connections []*connection.Record `json:"connections"`
}

// Operation serves the admin REST endpoints.
type Operation struct {
	connections *connection.Repository
	handlers    []operation.Handler
}

// New returns the admin operation.
func New(ctx provider) (*Operation, error) {
	if ctx == nil || ctx.ConnectionRepository() == nil {
		return nil, errors.New("admin: connection repository is required")
	}

	o := &Operation{connections: ctx.ConnectionRepository()}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []operation.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []operation.Handler{
		operation.NewHTTPHandler(ConnectionsPath, http.MethodGet, o.ListConnections),
		operation.NewHTTPHandler(ConnectionPath, http.MethodGet, o.GetConnection),
	}
}

// ListConnections writes every connection.
func (o *Operation) ListConnections(rw http.ResponseWriter, req *http.Request) {
	recs, err := o.connections.List(req.Context())
	if err != nil {
		sendStoreError(rw, err)

		return
	}

	writeJSON(rw, &ConnectionsResponse{Connections: recs})
}

// GetConnection writes the connection of the client DID in the path.
func (o *Operation) GetConnection(rw http.ResponseWriter, req *http.Request) {
	did := mux.Vars(req)["did"]
	if did == "" {
		resterrors.SendHTTPBadRequest(rw, InvalidRequestErrorCode, errors.New("client DID is mandatory"))

		return
	}

	rec, err := o.connections.FindByClientDID(req.Context(), did)
	if err != nil {
		sendStoreError(rw, err)

		return
	}

	writeJSON(rw, rec)
}

func sendStoreError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, connection.ErrNotFound):
		resterrors.SendHTTPNotFound(rw, ConnectionNotFoundErrorCode, err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		resterrors.SendHTTPServiceUnavailable(rw, QueryConnectionsErrorCode, err)
	default:
		logger.Errorf("connection query failed: %s", err)
		resterrors.SendHTTPInternalServerError(rw, QueryConnectionsErrorCode, fmt.Errorf("query connections: %w", err))
	}
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}
