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

// MembershipRepository implements port.MembershipRepository
type MembershipRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewMembershipRepository creates a new group membership repository
func NewMembershipRepository(db *sqlite.DB, logger *zap.Logger) port.MembershipRepository {
	return &MembershipRepository{
		db:     db,
		logger: logger,
	}
}

// GroupsForUser returns the groups of a user, sorted by id
func (r *MembershipRepository) GroupsForUser(ctx context.Context, companyID, userID string) ([]string, error) {
	query := `
		SELECT group_id FROM group_memberships
		WHERE company_id = ? AND user_id = ?
		ORDER BY group_id ASC
	`
	return r.strings(ctx, query, companyID, userID)
}

// AddMember inserts a membership; an existing one is left untouched
func (r *MembershipRepository) AddMember(ctx context.Context, membership *entity.GroupMembership) error {
	query := `
		INSERT OR IGNORE INTO group_memberships (company_id, group_id, user_id, created_at)
		VALUES (?, ?, ?, ?)
	`

	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now()
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		membership.CompanyID,
		membership.GroupID,
		membership.UserID,
		membership.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to add group member",
			zap.String("group_id", membership.GroupID),
			zap.String("user_id", membership.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership
func (r *MembershipRepository) RemoveMember(ctx context.Context, companyID, groupID, userID string) error {
	query := `DELETE FROM group_memberships WHERE company_id = ? AND group_id = ? AND user_id = ?`

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, companyID, groupID, userID); err != nil {
		r.logger.Error("Failed to remove group member",
			zap.String("group_id", groupID),
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// ListMembers returns the users of a group, sorted by id
func (r *MembershipRepository) ListMembers(ctx context.Context, companyID, groupID string) ([]string, error) {
	query := `
		SELECT user_id FROM group_memberships
		WHERE company_id = ? AND group_id = ?
		ORDER BY user_id ASC
	`
	return r.strings(ctx, query, companyID, groupID)
}

func (r *MembershipRepository) strings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query group memberships", zap.Error(err))
		return nil, fmt.Errorf("failed to query group memberships: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan group membership: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Verify interface compliance
var _ port.MembershipRepository = (*MembershipRepository)(nil)
