package port

import (
	"context"
	"io"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
)

// ChatNotifier delivers plain-text chat messages to a user
type ChatNotifier interface {
	SendText(ctx context.Context, userID string, text string) error
}

// HistoryArchive stores approval events outside the primary database
type HistoryArchive interface {
	Archive(ctx context.Context, evt *event.Event) error
}

// RuleExporter renders the rule register into a spreadsheet
type RuleExporter interface {
	Export(w io.Writer, companyID string, rules []*entity.ApprovalRule) error
}

// Delivery is one chat message waiting to be sent
type Delivery struct {
	NotificationID int64
	Recipient      string
	Text           string
}

// DeliveryQueue hands deliveries to a background sender
type DeliveryQueue interface {
	Enqueue(ctx context.Context, delivery Delivery) error
}
