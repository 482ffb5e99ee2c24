package entity

import "time"

// ApprovalHistory represents the audit trail of an approval request
type ApprovalHistory struct {
	ID             int64        `json:"id"`
	RequestID      string       `json:"request_id"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentID     string       `json:"document_id"`
	ActorID        string       `json:"actor_id"`
	PreviousStatus string       `json:"previous_status"`
	NewStatus      string       `json:"new_status"`
	Action         string       `json:"action"`
	Comment        string       `json:"comment,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}
