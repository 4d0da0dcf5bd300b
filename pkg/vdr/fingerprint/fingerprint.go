/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fingerprint encodes public keys as did:key method identifiers.
package fingerprint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

const (
	// X25519PubKeyMultiCodec for Curve25519 public key in multicodec table.
	// source: https://github.com/multiformats/multicodec/blob/master/table.csv.
	X25519PubKeyMultiCodec = 0xec
	// ED25519PubKeyMultiCodec for Ed25519 public key in multicodec table.
	ED25519PubKeyMultiCodec = 0xed

	didKeyPrefix = "did:key:"
)

// CreateDIDKey creates a did:key ID using the multicodec key fingerprint as per the did:key format spec found at:
// https://w3c-ccg.github.io/did-method-key/#format.
func CreateDIDKey(pubKey []byte) (string, string) {
	return CreateDIDKeyByCode(ED25519PubKeyMultiCodec, pubKey)
}

// CreateDIDKeyByCode returns the did:key and the key ID of pubKey of the multicodec type code.
func CreateDIDKeyByCode(code uint64, pubKey []byte) (string, string) {
	methodID := KeyFingerprint(code, pubKey)
	didKey := didKeyPrefix + methodID
	keyID := fmt.Sprintf("%s#%s", didKey, methodID)

	return didKey, keyID
}

// KeyFingerprint generates a multicode fingerprint for pubKeyValue (raw key []byte).
// It is mainly used as the controller ID (methodSpecification ID) of a did key.
func KeyFingerprint(code uint64, pubKeyValue []byte) string {
	buf := make([]byte, binary.MaxVarintLen64+len(pubKeyValue))
	n := binary.PutUvarint(buf, code)
	n += copy(buf[n:], pubKeyValue)

	// base58btc cannot fail
	fp, _ := multibase.Encode(multibase.Base58BTC, buf[:n]) //nolint:errcheck

	return fp
}

// PubKeyFromFingerprint extracts the raw public key and its multicodec type from a did:key fingerprint.
func PubKeyFromFingerprint(fingerprint string) ([]byte, uint64, error) {
	// did:key:MULTIBASE(base58-btc, MULTICODEC(public-key-type, raw-public-key-bytes))
	// https://w3c-ccg.github.io/did-method-key/#format
	enc, mc, err := multibase.Decode(fingerprint)
	if err != nil {
		return nil, 0, fmt.Errorf("pubKeyFromFingerprint: %w", err)
	}

	if enc != multibase.Base58BTC {
		return nil, 0, fmt.Errorf("pubKeyFromFingerprint: unexpected multibase encoding %q", string(rune(enc)))
	}

	code, n := binary.Uvarint(mc)
	if n <= 0 || n >= len(mc) {
		return nil, 0, errors.New("pubKeyFromFingerprint: invalid multicodec prefix")
	}

	return mc[n:], code, nil
}

// PubKeyFromDIDKey parses a did:key, with or without a key fragment.
func PubKeyFromDIDKey(didKey string) ([]byte, uint64, error) {
	if !strings.HasPrefix(didKey, didKeyPrefix) {
		return nil, 0, fmt.Errorf("not a did:key: %s", didKey)
	}

	methodID := strings.TrimPrefix(didKey, didKeyPrefix)
	if i := strings.IndexByte(methodID, '#'); i >= 0 {
		methodID = methodID[:i]
	}

	return PubKeyFromFingerprint(methodID)
}
