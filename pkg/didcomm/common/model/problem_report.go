/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package model

// ProblemReportType is the message type of problem reports.
const ProblemReportType = "https://didcomm.org/report-problem/2.0/problem-report"

// ProblemReport is the body of a problem-report message.
type ProblemReport struct {
	Code       string   `json:"code"`
	Comment    string   `json:"comment,omitempty"`
	Args       []string `json:"args,omitempty"`
	EscalateTo string   `json:"escalate_to,omitempty"`
}

// NewProblemReport builds a problem-report message. Its thread is the thread of the message that caused it,
// thid if set, else the id of that message.
func NewProblemReport(code, comment, causeID, causeThID string) *Message {
	msg := NewMessage(ProblemReportType, &ProblemReport{Code: code, Comment: comment})
	msg.PThID = causeThID

	if causeThID == "" {
		msg.PThID = causeID
	}

	return msg
}
