/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package key implements the did:key method for Ed25519 and X25519 keys.
package key

import (
	"context"
	"fmt"
	"regexp"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/secrets"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr/fingerprint"
)

const (
	// DIDMethod did method.
	DIDMethod = "key"

	schemaV1     = "https://www.w3.org/ns/did/v1"
	schemaX25519 = "https://w3id.org/security/suites/x25519-2020/v1"
	schemaEd     = "https://w3id.org/security/suites/ed25519-2020/v1"
)

var methodIDPattern = regexp.MustCompile(`^z[1-9A-HJ-NP-Za-km-z]+$`)

// VDR implements did:key resolution.
type VDR struct{}

// New returns new instance of VDR that works with did:key method.
func New() *VDR {
	return &VDR{}
}

// Accept accepts did:key method.
func (v *VDR) Accept(method string) bool {
	return method == DIDMethod
}

// Resolve expands did:key value to a DID document.
func (v *VDR) Resolve(_ context.Context, didKey string) (*vdr.Document, error) {
	method, err := vdr.GetDidMethod(didKey)
	if err != nil {
		return nil, fmt.Errorf("did:key resolve: %w", err)
	}

	if !v.Accept(method) {
		return nil, fmt.Errorf("did:key resolve: %w: %s", vdr.ErrMethodNotSupported, method)
	}

	methodID := didKey[len("did:key:"):]
	if !methodIDPattern.MatchString(methodID) {
		return nil, fmt.Errorf("did:key resolve: invalid method ID %s: %w", methodID, vdr.ErrNotFound)
	}

	_, code, err := fingerprint.PubKeyFromFingerprint(methodID)
	if err != nil {
		return nil, fmt.Errorf("did:key resolve: %w", err)
	}

	return createDoc(didKey, methodID, code)
}

func createDoc(didKey, methodID string, code uint64) (*vdr.Document, error) {
	vm := vdr.VerificationMethod{
		ID:                 didKey + "#" + methodID,
		Controller:         didKey,
		PublicKeyMultibase: methodID,
	}

	doc := &vdr.Document{ID: didKey}

	switch code {
	case fingerprint.ED25519PubKeyMultiCodec:
		vm.Type = secrets.Ed25519VerificationKey2020
		doc.Context = []string{schemaV1, schemaEd}
		doc.Authentication = []string{vm.ID}
		doc.AssertionMethod = []string{vm.ID}
	case fingerprint.X25519PubKeyMultiCodec:
		vm.Type = secrets.X25519KeyAgreementKey2020
		doc.Context = []string{schemaV1, schemaX25519}
		doc.KeyAgreement = []string{vm.ID}
	default:
		return nil, fmt.Errorf("unsupported key multicodec code [0x%x]", code)
	}

	doc.VerificationMethod = []vdr.VerificationMethod{vm}

	return doc, nil
}
