package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/application/workflow"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
)

// CreateRequestInput identifies the document that needs sign-off
type CreateRequestInput struct {
	DocumentType entity.DocumentType `json:"documentType"`
	DocumentID   string              `json:"documentId"`
	Amount       decimal.Decimal     `json:"amount"`
	RequestedBy  string              `json:"-"`
	CompanyID    string              `json:"companyId"`
}

// ApprovalService manages approval requests
type ApprovalService interface {
	// CreateRequest opens a Pending request when a rule matches.
	// It returns nil, nil when no approval is required.
	CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.ApprovalRequest, error)

	// Transition moves a request to newStatus after checking eligibility
	Transition(ctx context.Context, requestID string, newStatus entity.ApprovalStatus, actingUser, comment string) (*entity.ApprovalRequest, error)

	Approve(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error)
	Reject(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error)
	Cancel(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error)
	Reopen(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error)

	GetRequest(ctx context.Context, requestID string) (*entity.ApprovalRequest, error)
	GetActiveRequest(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error)
	GetLatestRequest(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error)
	ListHistory(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error)
	ListDocumentHistory(ctx context.Context, documentType entity.DocumentType, documentID string) ([]*entity.ApprovalHistory, error)

	// ListPendingForApprover returns the Pending requests userID can approve right now
	ListPendingForApprover(ctx context.Context, companyID, userID string) ([]*entity.ApprovalRequest, error)
}

type approvalServiceImpl struct {
	rules       RuleService
	ruleRepo    port.RuleRepository
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	memberships port.MembershipRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	lifecycle   *requestLifecycle
}

// ApprovalDeps groups the collaborators of ApprovalService and DocumentService
type ApprovalDeps struct {
	Rules        RuleService
	Eligibility  EligibilityService
	RuleRepo     port.RuleRepository
	RequestRepo  port.RequestRepository
	HistoryRepo  port.HistoryRepository
	DocumentRepo port.DocumentRepository
	Memberships  port.MembershipRepository
	TxManager    port.TransactionManager
	Dispatcher   dispatcher.Dispatcher
	Engine       workflow.Engine
	Logger       Logger
	Now          func() time.Time
}

func (d ApprovalDeps) lifecycle() *requestLifecycle {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	engine := d.Engine
	if engine == nil {
		engine = workflow.NewEngine()
	}

	return &requestLifecycle{
		requestRepo:  d.RequestRepo,
		historyRepo:  d.HistoryRepo,
		documentRepo: d.DocumentRepo,
		eligibility:  d.Eligibility,
		engine:       engine,
		now:          now,
	}
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(deps ApprovalDeps) ApprovalService {
	return &approvalServiceImpl{
		rules:       deps.Rules,
		ruleRepo:    deps.RuleRepo,
		requestRepo: deps.RequestRepo,
		historyRepo: deps.HistoryRepo,
		memberships: deps.Memberships,
		txManager:   deps.TxManager,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		lifecycle:   deps.lifecycle(),
	}
}

// CreateRequest opens a Pending request when a rule matches
func (s *approvalServiceImpl) CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.ApprovalRequest, error) {
	if err := validateRequestInput(input); err != nil {
		return nil, err
	}

	rule, err := s.rules.Resolve(ctx, input.CompanyID, input.DocumentType, input.Amount)
	if err != nil {
		s.logger.Error("Failed to resolve rule", "error", err, "document_type", input.DocumentType, "document_id", input.DocumentID)
		return nil, err
	}
	if rule == nil {
		s.logger.Info("No approval required", "document_type", input.DocumentType, "document_id", input.DocumentID,
			"amount", input.Amount.String())
		return nil, nil
	}

	var request *entity.ApprovalRequest
	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.lifecycle.ensureUnmanaged(txCtx, input.DocumentType, input.DocumentID); err != nil {
			return err
		}

		var err error
		request, events, err = s.lifecycle.create(txCtx, input, rule)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "document_type", input.DocumentType, "document_id", input.DocumentID)
		return nil, err
	}

	publish(ctx, s.dispatcher, events)

	s.logger.Info("Approval request created", "id", request.ID, "rule_id", rule.ID,
		"document_type", request.DocumentType, "document_id", request.DocumentID)
	return request, nil
}

// Transition moves a request to newStatus after checking eligibility
func (s *approvalServiceImpl) Transition(ctx context.Context, requestID string, newStatus entity.ApprovalStatus, actingUser, comment string) (*entity.ApprovalRequest, error) {
	if strings.TrimSpace(actingUser) == "" {
		return nil, approval.NewValidationError("userId", "is required")
	}

	var request *entity.ApprovalRequest
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}

		events, err = s.lifecycle.transition(txCtx, request, newStatus, actingUser, comment)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to transition request", "error", err, "id", requestID,
			"status", newStatus, "user_id", actingUser)
		return nil, err
	}

	publish(ctx, s.dispatcher, events)

	s.logger.Info("Approval request transitioned", "id", requestID, "status", newStatus, "user_id", actingUser)
	return request, nil
}

// Approve moves a Pending request to Approved
func (s *approvalServiceImpl) Approve(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error) {
	return s.Transition(ctx, requestID, entity.ApprovalStatusApproved, actingUser, comment)
}

// Reject moves a Pending request to Rejected
func (s *approvalServiceImpl) Reject(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error) {
	return s.Transition(ctx, requestID, entity.ApprovalStatusRejected, actingUser, comment)
}

// Cancel withdraws a Pending request
func (s *approvalServiceImpl) Cancel(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error) {
	return s.Transition(ctx, requestID, entity.ApprovalStatusCancelled, actingUser, comment)
}

// Reopen moves a decided request back to Pending
func (s *approvalServiceImpl) Reopen(ctx context.Context, requestID, actingUser, comment string) (*entity.ApprovalRequest, error) {
	return s.Transition(ctx, requestID, entity.ApprovalStatusPending, actingUser, comment)
}

// GetRequest retrieves a request by ID
func (s *approvalServiceImpl) GetRequest(ctx context.Context, requestID string) (*entity.ApprovalRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		s.logger.Error("Failed to get request", "error", err, "id", requestID)
		return nil, approval.WrapPersistence("get request", err)
	}
	if request == nil {
		return nil, &approval.NotFoundError{Resource: "approval request", ID: requestID}
	}
	return request, nil
}

// GetActiveRequest returns the Pending request of a document, or nil
func (s *approvalServiceImpl) GetActiveRequest(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error) {
	request, err := s.requestRepo.GetPendingByDocument(ctx, documentType, documentID)
	if err != nil {
		return nil, approval.WrapPersistence("get pending request", err)
	}
	return request, nil
}

// GetLatestRequest returns the most recent request of a document, or nil
func (s *approvalServiceImpl) GetLatestRequest(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error) {
	request, err := s.requestRepo.GetLatestByDocument(ctx, documentType, documentID)
	if err != nil {
		return nil, approval.WrapPersistence("get latest request", err)
	}
	return request, nil
}

// ListHistory returns the audit trail of a request, oldest first
func (s *approvalServiceImpl) ListHistory(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}

	history, err := s.historyRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, approval.WrapPersistence("list history", err)
	}
	return history, nil
}

// ListDocumentHistory returns every status change recorded for a document, oldest first
func (s *approvalServiceImpl) ListDocumentHistory(ctx context.Context, documentType entity.DocumentType, documentID string) ([]*entity.ApprovalHistory, error) {
	history, err := s.historyRepo.GetByDocument(ctx, documentType, documentID)
	if err != nil {
		return nil, approval.WrapPersistence("list history", err)
	}
	return history, nil
}

// ListPendingForApprover returns the Pending requests userID can approve right now.
// Rules and memberships are loaded once and resolved per request.
func (s *approvalServiceImpl) ListPendingForApprover(ctx context.Context, companyID, userID string) ([]*entity.ApprovalRequest, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, approval.NewValidationError("companyId", "is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, approval.NewValidationError("userId", "is required")
	}

	pending, err := s.requestRepo.ListPending(ctx, companyID)
	if err != nil {
		return nil, approval.WrapPersistence("list pending requests", err)
	}
	if len(pending) == 0 {
		return []*entity.ApprovalRequest{}, nil
	}

	rules, err := s.ruleRepo.ListByCompany(ctx, companyID, "")
	if err != nil {
		return nil, approval.WrapPersistence("load rules", err)
	}

	groups, err := s.memberships.GroupsForUser(ctx, companyID, userID)
	if err != nil {
		return nil, approval.WrapPersistence("load group memberships", err)
	}

	inbox := make([]*entity.ApprovalRequest, 0, len(pending))
	for _, request := range pending {
		rule, err := approval.ResolveRule(request.DocumentType, request.Amount, rules)
		if err != nil {
			s.logger.Error("Skipping request with unresolvable rule", "error", err, "id", request.ID)
			continue
		}
		if approval.CanApproveRule(rule, userID, groups) {
			inbox = append(inbox, request)
		}
	}

	return inbox, nil
}

func validateRequestInput(input CreateRequestInput) error {
	if !input.DocumentType.IsValid() {
		return approval.NewValidationError("documentType", "unknown document type %q", input.DocumentType)
	}
	if strings.TrimSpace(input.DocumentID) == "" {
		return approval.NewValidationError("documentId", "is required")
	}
	if strings.TrimSpace(input.CompanyID) == "" {
		return approval.NewValidationError("companyId", "is required")
	}
	if strings.TrimSpace(input.RequestedBy) == "" {
		return approval.NewValidationError("requestedBy", "is required")
	}
	if input.Amount.IsNegative() {
		return approval.NewValidationError("amount", "must not be negative, got %s", input.Amount.String())
	}
	return nil
}
