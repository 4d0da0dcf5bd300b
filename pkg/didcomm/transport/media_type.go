/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transport holds what the inbound transports share.
package transport

import (
	"mime"
	"strings"
)

const (
	// MediaTypePlaintext is the media type of DIDComm v2 plaintext messages.
	MediaTypePlaintext = "application/didcomm-plain+json"
	// MediaTypeSigned is the media type of DIDComm v2 signed messages.
	MediaTypeSigned = "application/didcomm-signed+json"
	// MediaTypeEncrypted is the media type of DIDComm v2 encrypted envelopes.
	MediaTypeEncrypted = "application/didcomm-encrypted+json"
)

// MediaTypeOf returns the media type of a Content-Type header without its parameters, lower cased.
func MediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	return mediaType
}
