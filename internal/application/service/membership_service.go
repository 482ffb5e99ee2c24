package service

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// MembershipService manages who belongs to which approver group
type MembershipService interface {
	AddMember(ctx context.Context, companyID, groupID, userID string) error
	RemoveMember(ctx context.Context, companyID, groupID, userID string) error
	ListMembers(ctx context.Context, companyID, groupID string) ([]string, error)
	GroupsForUser(ctx context.Context, companyID, userID string) ([]string, error)
}

type membershipServiceImpl struct {
	memberships port.MembershipRepository
	logger      Logger
}

// NewMembershipService creates a new MembershipService.
// Writes go through memberships so a caching repository can invalidate itself.
func NewMembershipService(memberships port.MembershipRepository, logger Logger) MembershipService {
	return &membershipServiceImpl{
		memberships: memberships,
		logger:      logger,
	}
}

// AddMember puts userID in groupID; adding an existing member is a no-op
func (s *membershipServiceImpl) AddMember(ctx context.Context, companyID, groupID, userID string) error {
	if err := validateMembership(companyID, groupID, userID); err != nil {
		return err
	}

	err := s.memberships.AddMember(ctx, &entity.GroupMembership{
		CompanyID: strings.TrimSpace(companyID),
		GroupID:   strings.TrimSpace(groupID),
		UserID:    strings.TrimSpace(userID),
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.logger.Error("Failed to add group member", "error", err, "company_id", companyID, "group_id", groupID, "user_id", userID)
		return approval.WrapPersistence("add group member", err)
	}

	s.logger.Info("Group member added", "company_id", companyID, "group_id", groupID, "user_id", userID)
	return nil
}

// RemoveMember takes userID out of groupID
func (s *membershipServiceImpl) RemoveMember(ctx context.Context, companyID, groupID, userID string) error {
	if err := validateMembership(companyID, groupID, userID); err != nil {
		return err
	}

	if err := s.memberships.RemoveMember(ctx, companyID, groupID, userID); err != nil {
		s.logger.Error("Failed to remove group member", "error", err, "company_id", companyID, "group_id", groupID, "user_id", userID)
		return approval.WrapPersistence("remove group member", err)
	}

	s.logger.Info("Group member removed", "company_id", companyID, "group_id", groupID, "user_id", userID)
	return nil
}

// ListMembers returns the user ids of a group
func (s *membershipServiceImpl) ListMembers(ctx context.Context, companyID, groupID string) ([]string, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, approval.NewValidationError("companyId", "is required")
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, approval.NewValidationError("groupId", "is required")
	}

	members, err := s.memberships.ListMembers(ctx, companyID, groupID)
	if err != nil {
		return nil, approval.WrapPersistence("list group members", err)
	}
	return members, nil
}

// GroupsForUser returns the groups userID belongs to
func (s *membershipServiceImpl) GroupsForUser(ctx context.Context, companyID, userID string) ([]string, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, approval.NewValidationError("companyId", "is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, approval.NewValidationError("userId", "is required")
	}

	groups, err := s.memberships.GroupsForUser(ctx, companyID, userID)
	if err != nil {
		return nil, approval.WrapPersistence("load group memberships", err)
	}
	return groups, nil
}

func validateMembership(companyID, groupID, userID string) error {
	if strings.TrimSpace(companyID) == "" {
		return approval.NewValidationError("companyId", "is required")
	}
	if strings.TrimSpace(groupID) == "" {
		return approval.NewValidationError("groupId", "is required")
	}
	if strings.TrimSpace(userID) == "" {
		return approval.NewValidationError("userId", "is required")
	}
	return nil
}
