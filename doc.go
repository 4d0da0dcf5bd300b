/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package didcommmediator is a DIDComm v2 mediator: it grants mediation to clients, keeps their keylists,
// queues forwarded messages for them and hands the queue out through message pickup.
//
// Packages for end developer usage
//
// pkg/mediator: Composition root. Builds the repositories, the mediator identity, the DID resolver and the
// protocol registry from options and exposes the inbound handler the transports feed.
//
// pkg/didcomm/protocol: The coordinate-mediation 2.0, messagepickup 3.0 and routing 2.0 protocols.
//
// pkg/didcomm/transport/http, pkg/didcomm/transport/ws: HTTP POST and websocket ingress.
//
// pkg/restapi: Admin and well-known REST endpoints.
//
// cmd/mediator-rest: The mediator server binary.
//
// Basic workflow
//
//	1) Create a mediator with mediator.New and the storage provider of your choice.
//	2) Mount didcomm/transport/http.NewInboundHandler(m.InboundHandler()) on a router.
//	3) Call m.Close() to release resources.
package didcommmediator
