/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vdr

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a DID cannot be resolved.
	ErrNotFound = errors.New("DID does not exist")
	// ErrMethodNotSupported is returned for a DID whose method has no registered resolver.
	ErrMethodNotSupported = errors.New("did method not supported")
)

// Document is a resolved DID document, limited to the parts the mediator reads.
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	Authentication     []string             `json:"authentication,omitempty"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
	KeyAgreement       []string             `json:"keyAgreement,omitempty"`
	Service            []Service            `json:"service,omitempty"`
}

// VerificationMethod is a public key of a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Service is a service endpoint of a DID document.
type Service struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
	Accept          []string `json:"accept,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
}

// Resolver maps a DID to its document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*Document, error)
}

// MethodResolver resolves the DIDs of one method.
type MethodResolver interface {
	Resolver
	Accept(method string) bool
}

// Creator creates DIDs whose private keys the mediator keeps.
type Creator interface {
	Create(ctx context.Context) (string, error)
	// Remove deletes the keys of a DID returned by Create.
	Remove(ctx context.Context, did string) error
}
