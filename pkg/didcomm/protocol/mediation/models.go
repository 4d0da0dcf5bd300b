/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediation

// GrantBody is the body of mediate-grant.
type GrantBody struct {
	RoutingDID string `json:"routing_did"`
}

// KeylistUpdateBody is the body of keylist-update.
type KeylistUpdateBody struct {
	Updates []Update `json:"updates"`
}

// Update is one keylist change.
type Update struct {
	RecipientDID string `json:"recipient_did"`
	Action       string `json:"action"`
}

// KeylistUpdateResponseBody is the body of keylist-update-response.
type KeylistUpdateResponseBody struct {
	Updated []UpdateResponse `json:"updated"`
}

// UpdateResponse reports the outcome of one Update.
type UpdateResponse struct {
	RecipientDID string `json:"recipient_did"`
	Action       string `json:"action"`
	Result       string `json:"result"`
}

// KeylistQueryBody is the body of keylist-query.
type KeylistQueryBody struct {
	Paginate *Paginate `json:"paginate,omitempty"`
}

// Paginate selects a window of the keylist.
type Paginate struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// KeylistBody is the body of keylist.
type KeylistBody struct {
	Keys       []Key       `json:"keys"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Key is a keylist entry.
type Key struct {
	RecipientDID string `json:"recipient_did"`
}

// Pagination describes the window returned in keylist.
type Pagination struct {
	Count     int `json:"count"`
	Offset    int `json:"offset"`
	Remaining int `json:"remaining"`
}
