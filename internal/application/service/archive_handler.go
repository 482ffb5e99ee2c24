package service

import (
	"context"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/event"
)

// NewArchiveHandler copies approval events into the history archive.
// Archive failures are logged and returned so the dispatcher records them too.
func NewArchiveHandler(archive port.HistoryArchive, logger Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if err := archive.Archive(ctx, evt); err != nil {
			logger.Error("Failed to archive event", "error", err, "event_id", evt.ID, "event_type", evt.Type)
			return err
		}
		logger.Info("Event archived", "event_id", evt.ID, "event_type", evt.Type, "request_id", evt.RequestID)
		return nil
	}
}
