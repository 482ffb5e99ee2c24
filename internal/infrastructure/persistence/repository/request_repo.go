package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/sqlite"
)

const requestColumns = `id, document_type, document_id, company_id, amount, requested_by, status,
	rule_id, approver_group_ids, default_approver_id, decided_by, decided_at, comment,
	version, created_at, updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new approval request repository
func NewRequestRepository(db *sqlite.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a request. A second Pending request for one document yields port.ErrConflict.
func (r *RequestRepository) Create(ctx context.Context, request *entity.ApprovalRequest) error {
	groups, err := encodeIDs(request.ApproverGroupIDs)
	if err != nil {
		return err
	}
	if request.Version == 0 {
		request.Version = 1
	}

	query := `
		INSERT INTO approval_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		request.ID,
		request.DocumentType,
		request.DocumentID,
		request.CompanyID,
		request.Amount.String(),
		request.RequestedBy,
		request.Status,
		request.RuleID,
		groups,
		request.DefaultApproverID,
		request.DecidedBy,
		nullTime(request.DecidedAt),
		request.Comment,
		request.Version,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return port.ErrConflict
		}
		r.logger.Error("Failed to create approval request",
			zap.String("document_id", request.DocumentID),
			zap.Error(err))
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by ID, or nil when it does not exist
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetPendingByDocument returns the Pending request of a document, or nil
func (r *RequestRepository) GetPendingByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + ` FROM approval_requests
		WHERE document_type = ? AND document_id = ? AND status = ?
	`
	return r.getOne(ctx, query, documentType, documentID, entity.ApprovalStatusPending)
}

// GetLatestByDocument returns the most recently created request of a document, or nil
func (r *RequestRepository) GetLatestByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + ` FROM approval_requests
		WHERE document_type = ? AND document_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, documentType, documentID)
}

// UpdateStatus writes the decision fields guarded by the version column
func (r *RequestRepository) UpdateStatus(ctx context.Context, request *entity.ApprovalRequest) error {
	query := `
		UPDATE approval_requests
		SET status = ?, decided_by = ?, decided_at = ?, comment = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		request.Status,
		request.DecidedBy,
		nullTime(request.DecidedAt),
		request.Comment,
		request.UpdatedAt,
		request.ID,
		request.Version,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return port.ErrConflict
		}
		r.logger.Error("Failed to update approval request status",
			zap.String("request_id", request.ID),
			zap.String("status", request.Status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update approval request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		r.logger.Info("Approval request version mismatch",
			zap.String("request_id", request.ID),
			zap.Int64("version", request.Version))
		return port.ErrStaleVersion
	}

	request.Version++
	return nil
}

// ListPending returns the Pending requests of a company, oldest first
func (r *RequestRepository) ListPending(ctx context.Context, companyID string) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + ` FROM approval_requests
		WHERE company_id = ? AND status = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, companyID, entity.ApprovalStatusPending)
	if err != nil {
		r.logger.Error("Failed to list pending requests", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.ApprovalRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func (r *RequestRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.ApprovalRequest, error) {
	request, err := scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval request", zap.Error(err))
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return request, nil
}

func scanRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var (
		request   entity.ApprovalRequest
		amount    string
		groups    string
		decidedAt sql.NullTime
	)
	err := row.Scan(
		&request.ID,
		&request.DocumentType,
		&request.DocumentID,
		&request.CompanyID,
		&amount,
		&request.RequestedBy,
		&request.Status,
		&request.RuleID,
		&groups,
		&request.DefaultApproverID,
		&request.DecidedBy,
		&decidedAt,
		&request.Comment,
		&request.Version,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if request.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if request.ApproverGroupIDs, err = decodeIDs(groups); err != nil {
		return nil, err
	}
	request.DecidedAt = timePtr(decidedAt)
	return &request, nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
