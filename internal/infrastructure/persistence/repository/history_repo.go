package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history (
			request_id, document_type, document_id, actor_id, previous_status,
			new_status, action, comment, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		history.RequestID,
		history.DocumentType,
		history.DocumentID,
		history.ActorID,
		history.PreviousStatus,
		history.NewStatus,
		history.Action,
		history.Comment,
		history.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByRequestID retrieves all history records of a request in insertion order
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, request_id, document_type, document_id, actor_id, previous_status,
			new_status, action, comment, timestamp
		FROM approval_history
		WHERE request_id = ?
		ORDER BY id ASC
	`
	return r.query(ctx, query, requestID)
}

// GetByDocument retrieves every record of a document, request and document moves alike
func (r *HistoryRepository) GetByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, request_id, document_type, document_id, actor_id, previous_status,
			new_status, action, comment, timestamp
		FROM approval_history
		WHERE document_type = ? AND document_id = ?
		ORDER BY id ASC
	`
	return r.query(ctx, query, documentType, documentID)
}

func (r *HistoryRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalHistory, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get history", zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalHistory
	for rows.Next() {
		var record entity.ApprovalHistory
		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.DocumentType,
			&record.DocumentID,
			&record.ActorID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Action,
			&record.Comment,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
