package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// RuleContext identifies which rule governs a document
type RuleContext struct {
	Amount       decimal.Decimal
	DocumentType entity.DocumentType
	CompanyID    string
}

// EligibilityService answers who may act on an approval
type EligibilityService interface {
	// CanApprove re-resolves the live rule and checks the user's groups.
	// It has no side effects.
	CanApprove(ctx context.Context, rc RuleContext, userID string) (bool, error)

	// Evaluate returns the permissions for the latest request of a document
	Evaluate(ctx context.Context, documentType entity.DocumentType, documentID, userID string) (approval.Permissions, error)

	// EvaluateRequest returns the permissions for a known request, which may be nil
	EvaluateRequest(ctx context.Context, request *entity.ApprovalRequest, userID string) (approval.Permissions, error)
}

type eligibilityServiceImpl struct {
	rules       RuleService
	requestRepo port.RequestRepository
	memberships port.MembershipRepository
}

// NewEligibilityService creates a new EligibilityService.
// memberships is expected to be the cached repository.
func NewEligibilityService(
	rules RuleService,
	requestRepo port.RequestRepository,
	memberships port.MembershipRepository,
) EligibilityService {
	return &eligibilityServiceImpl{
		rules:       rules,
		requestRepo: requestRepo,
		memberships: memberships,
	}
}

// CanApprove re-resolves the live rule and checks the user's groups
func (s *eligibilityServiceImpl) CanApprove(ctx context.Context, rc RuleContext, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	rule, err := s.rules.Resolve(ctx, rc.CompanyID, rc.DocumentType, rc.Amount)
	if err != nil {
		return false, err
	}
	if rule == nil {
		// nothing gates the document, so there is nothing to approve
		return false, nil
	}

	groups, err := s.memberships.GroupsForUser(ctx, rc.CompanyID, userID)
	if err != nil {
		return false, approval.WrapPersistence("load group memberships", err)
	}

	return approval.CanApproveRule(rule, userID, groups), nil
}

// Evaluate returns the permissions for the latest request of a document
func (s *eligibilityServiceImpl) Evaluate(ctx context.Context, documentType entity.DocumentType, documentID, userID string) (approval.Permissions, error) {
	if !documentType.IsValid() {
		return approval.Permissions{}, approval.NewValidationError("documentType", "unknown document type %q", documentType)
	}

	request, err := s.requestRepo.GetLatestByDocument(ctx, documentType, documentID)
	if err != nil {
		return approval.Permissions{}, approval.WrapPersistence("get latest request", err)
	}

	return s.EvaluateRequest(ctx, request, userID)
}

// EvaluateRequest returns the permissions for a known request, which may be nil
func (s *eligibilityServiceImpl) EvaluateRequest(ctx context.Context, request *entity.ApprovalRequest, userID string) (approval.Permissions, error) {
	if request == nil {
		return approval.Ungated(), nil
	}

	canApprove, err := s.CanApprove(ctx, RuleContext{
		Amount:       request.Amount,
		DocumentType: request.DocumentType,
		CompanyID:    request.CompanyID,
	}, userID)
	if err != nil {
		return approval.Permissions{}, err
	}

	return approval.Evaluate(request, userID, canApprove), nil
}
