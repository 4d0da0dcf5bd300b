/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pickup

// StatusRequestBody is the body of status-request.
type StatusRequestBody struct {
	RecipientDID string `json:"recipient_did,omitempty"`
}

// StatusBody is the body of status.
type StatusBody struct {
	RecipientDID         string   `json:"recipient_did,omitempty"`
	MessageCount         int      `json:"message_count"`
	LongestWaitedSeconds int64    `json:"longest_waited_seconds,omitempty"`
	NewestReceivedTime   int64    `json:"newest_received_time,omitempty"`
	OldestReceivedTime   int64    `json:"oldest_received_time,omitempty"`
	TotalBytes           int      `json:"total_bytes,omitempty"`
	LiveDelivery         bool     `json:"live_delivery"`
	NotRemoved           []string `json:"not_removed,omitempty"`
}

// DeliveryRequestBody is the body of delivery-request.
type DeliveryRequestBody struct {
	Limit        int    `json:"limit"`
	RecipientDID string `json:"recipient_did,omitempty"`
}

// DeliveryBody is the body of delivery. The messages travel as attachments.
type DeliveryBody struct {
	RecipientDID string `json:"recipient_did,omitempty"`
}

// MessagesReceivedBody is the body of messages-received.
type MessagesReceivedBody struct {
	MessageIDList []string `json:"message_id_list"`
}

// LiveDeliveryChangeBody is the body of live-delivery-change.
type LiveDeliveryChangeBody struct {
	LiveDelivery bool `json:"live_delivery"`
}
