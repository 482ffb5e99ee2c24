package entity

import "time"

// Notification records one outbound chat message and its delivery outcome
type Notification struct {
	ID           int64      `json:"id"`
	RequestID    string     `json:"request_id"`
	EventType    string     `json:"event_type"`
	Recipient    string     `json:"recipient"`
	Message      string     `json:"message"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
