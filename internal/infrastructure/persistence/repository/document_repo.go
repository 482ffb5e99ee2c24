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

const documentColumns = `id, type, company_id, title, description, supplier_id, amount, status,
	created_by, version, created_at, updated_at`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlite.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a document
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	if doc.Version == 0 {
		doc.Version = 1
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		doc.ID,
		doc.Type,
		doc.CompanyID,
		doc.Title,
		doc.Description,
		doc.SupplierID,
		doc.Amount.String(),
		doc.Status,
		doc.CreatedBy,
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return port.ErrConflict
		}
		r.logger.Error("Failed to create document", zap.String("document_id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID, or nil when it does not exist
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.String("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Update writes the document guarded by the version column
func (r *DocumentRepository) Update(ctx context.Context, doc *entity.Document) error {
	query := `
		UPDATE documents
		SET title = ?, description = ?, supplier_id = ?, amount = ?, status = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		doc.Title,
		doc.Description,
		doc.SupplierID,
		doc.Amount.String(),
		doc.Status,
		doc.UpdatedAt,
		doc.ID,
		doc.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update document", zap.String("document_id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrStaleVersion
	}

	doc.Version++
	return nil
}

// Delete removes a document
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete document", zap.String("document_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// List returns a page of documents, newest first. An empty documentType returns every type.
func (r *DocumentRepository) List(ctx context.Context, companyID string, documentType entity.DocumentType, limit, offset int) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE company_id = ?`
	args := []interface{}{companyID}
	if documentType != "" {
		query += ` AND type = ?`
		args = append(args, documentType)
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc    entity.Document
		amount string
	)
	err := row.Scan(
		&doc.ID,
		&doc.Type,
		&doc.CompanyID,
		&doc.Title,
		&doc.Description,
		&doc.SupplierID,
		&amount,
		&doc.Status,
		&doc.CreatedBy,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if doc.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
