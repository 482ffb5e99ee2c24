package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/sqlite"
)

const ruleColumns = `id, company_id, document_type, name, enabled, lower_bound_amount,
	approver_group_ids, default_approver_id, created_by, updated_by, created_at, updated_at`

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sqlite.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a rule. A second enabled rule on the same bound yields port.ErrConflict.
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	groups, err := encodeIDs(rule.ApproverGroupIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO approval_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		rule.ID,
		rule.CompanyID,
		rule.DocumentType,
		rule.Name,
		rule.Enabled,
		rule.LowerBoundAmount.String(),
		groups,
		rule.DefaultApproverID,
		rule.CreatedBy,
		rule.UpdatedBy,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return port.ErrConflict
		}
		r.logger.Error("Failed to create rule", zap.String("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by ID, or nil when it does not exist
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = ?`

	rule, err := scanRule(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.String("rule_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// Update rewrites every mutable column of a rule
func (r *RuleRepository) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	groups, err := encodeIDs(rule.ApproverGroupIDs)
	if err != nil {
		return err
	}

	query := `
		UPDATE approval_rules
		SET name = ?, enabled = ?, lower_bound_amount = ?, approver_group_ids = ?,
			default_approver_id = ?, updated_by = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		rule.Name,
		rule.Enabled,
		rule.LowerBoundAmount.String(),
		groups,
		rule.DefaultApproverID,
		rule.UpdatedBy,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return port.ErrConflict
		}
		r.logger.Error("Failed to update rule", zap.String("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	return nil
}

// Delete removes a rule. Requests keep their snapshot of its approvers.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM approval_rules WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete rule", zap.String("rule_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// ListByCompany returns the rules of a company ordered by document type and numeric bound
func (r *RuleRepository) ListByCompany(ctx context.Context, companyID string, documentType entity.DocumentType) ([]*entity.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE company_id = ?`
	args := []interface{}{companyID}
	if documentType != "" {
		query += ` AND document_type = ?`
		args = append(args, documentType)
	}
	query += ` ORDER BY document_type, id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	// Bounds are stored as text, so numeric order is applied here.
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].DocumentType != rules[j].DocumentType {
			return rules[i].DocumentType < rules[j].DocumentType
		}
		return rules[i].LowerBoundAmount.LessThan(rules[j].LowerBoundAmount)
	})

	return rules, nil
}

func scanRule(row rowScanner) (*entity.ApprovalRule, error) {
	var (
		rule   entity.ApprovalRule
		bound  string
		groups string
	)
	err := row.Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.DocumentType,
		&rule.Name,
		&rule.Enabled,
		&bound,
		&groups,
		&rule.DefaultApproverID,
		&rule.CreatedBy,
		&rule.UpdatedBy,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rule.LowerBoundAmount, err = parseAmount(bound); err != nil {
		return nil, err
	}
	if rule.ApproverGroupIDs, err = decodeIDs(groups); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Verify interface compliance
var _ port.RuleRepository = (*RuleRepository)(nil)
