package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlite.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			request_id, event_type, recipient, message, status,
			error_message, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if notification.Status == "" {
		notification.Status = entity.NotificationStatusPending
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		notification.RequestID,
		notification.EventType,
		notification.Recipient,
		notification.Message,
		notification.Status,
		notification.ErrorMessage,
		nullTime(notification.SentAt),
		notification.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("request_id", notification.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// MarkSent records a successful delivery
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `UPDATE notifications SET status = ?, sent_at = ?, error_message = '' WHERE id = ?`
	return r.update(ctx, query, entity.NotificationStatusSent, sentAt, id)
}

// MarkFailed records a failed delivery and its cause
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `UPDATE notifications SET status = ?, error_message = ? WHERE id = ?`
	return r.update(ctx, query, entity.NotificationStatusFailed, errorMessage, id)
}

func (r *NotificationRepository) update(ctx context.Context, query string, status string, value interface{}, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, value, id)
	if err != nil {
		r.logger.Error("Failed to update notification",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification not found: %d", id)
	}
	return nil
}

// GetByRequestID retrieves the notifications of a request in creation order
func (r *NotificationRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Notification, error) {
	query := `
		SELECT id, request_id, event_type, recipient, message, status,
			error_message, sent_at, created_at
		FROM notifications
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get notifications", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var (
			n      entity.Notification
			sentAt sql.NullTime
		)
		err := rows.Scan(
			&n.ID,
			&n.RequestID,
			&n.EventType,
			&n.Recipient,
			&n.Message,
			&n.Status,
			&n.ErrorMessage,
			&sentAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.SentAt = timePtr(sentAt)
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
