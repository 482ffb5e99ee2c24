package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/form"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateRuleInput carries the fields of a new approval rule
type CreateRuleInput struct {
	CompanyID         string              `json:"companyId"`
	DocumentType      entity.DocumentType `json:"documentType"`
	Name              string              `json:"name"`
	Enabled           *bool               `json:"enabled"`
	LowerBoundAmount  decimal.Decimal     `json:"lowerBoundAmount"`
	ApproverGroupIDs  []string            `json:"approverGroupIds"`
	DefaultApproverID string              `json:"defaultApproverId"`
	CreatedBy         string              `json:"-"`
}

// RuleService manages approval rules
type RuleService interface {
	CreateRule(ctx context.Context, input CreateRuleInput) (*entity.ApprovalRule, error)
	UpdateRule(ctx context.Context, ruleID, actingUser string, cmds []form.Command) (*entity.ApprovalRule, error)
	DeleteRule(ctx context.Context, ruleID, actingUser string) error
	GetRule(ctx context.Context, ruleID string) (*entity.ApprovalRule, error)
	ListRules(ctx context.Context, companyID string, documentType entity.DocumentType) ([]*entity.ApprovalRule, error)

	// Resolve loads the company's rules and picks the one governing amount.
	// A nil rule means no approval is required.
	Resolve(ctx context.Context, companyID string, documentType entity.DocumentType, amount decimal.Decimal) (*entity.ApprovalRule, error)

	// ExportRules writes the company's rule register as a spreadsheet
	ExportRules(ctx context.Context, companyID string, w io.Writer) error
}

type ruleServiceImpl struct {
	ruleRepo  port.RuleRepository
	exporter  port.RuleExporter
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// NewRuleService creates a new RuleService
func NewRuleService(
	ruleRepo port.RuleRepository,
	exporter port.RuleExporter,
	txManager port.TransactionManager,
	logger Logger,
) RuleService {
	return &ruleServiceImpl{
		ruleRepo:  ruleRepo,
		exporter:  exporter,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRule validates and stores a new rule
func (s *ruleServiceImpl) CreateRule(ctx context.Context, input CreateRuleInput) (*entity.ApprovalRule, error) {
	now := s.now()
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	for _, groupID := range input.ApproverGroupIDs {
		if strings.TrimSpace(groupID) == "" {
			return nil, approval.NewValidationError("approverGroupIds", "must not contain empty ids")
		}
	}

	rule := &entity.ApprovalRule{
		ID:                uuid.NewString(),
		CompanyID:         strings.TrimSpace(input.CompanyID),
		DocumentType:      input.DocumentType,
		Name:              strings.TrimSpace(input.Name),
		Enabled:           enabled,
		LowerBoundAmount:  input.LowerBoundAmount,
		ApproverGroupIDs:  approval.NormalizeIDs(input.ApproverGroupIDs),
		DefaultApproverID: strings.TrimSpace(input.DefaultApproverID),
		CreatedBy:         strings.TrimSpace(input.CreatedBy),
		UpdatedBy:         strings.TrimSpace(input.CreatedBy),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := approval.ValidateRule(rule); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkUniqueBound(txCtx, rule); err != nil {
			return err
		}
		if err := s.ruleRepo.Create(txCtx, rule); err != nil {
			return s.classifyWrite("create rule", rule, err)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to create rule", "error", err, "company_id", rule.CompanyID, "document_type", rule.DocumentType)
		return nil, err
	}

	s.logger.Info("Rule created", "id", rule.ID, "company_id", rule.CompanyID, "document_type", rule.DocumentType,
		"lower_bound", rule.LowerBoundAmount.String())
	return rule, nil
}

// UpdateRule applies form commands to a rule owned by actingUser
func (s *ruleServiceImpl) UpdateRule(ctx context.Context, ruleID, actingUser string, cmds []form.Command) (*entity.ApprovalRule, error) {
	if len(cmds) == 0 {
		return nil, approval.NewValidationError("commands", "at least one command is required")
	}

	var updated *entity.ApprovalRule
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		rule, err := s.loadOwned(txCtx, ruleID, actingUser, "update rule")
		if err != nil {
			return err
		}

		if err := form.ApplyToRule(rule, cmds); err != nil {
			return err
		}
		if err := approval.ValidateRule(rule); err != nil {
			return err
		}
		if err := s.checkUniqueBound(txCtx, rule); err != nil {
			return err
		}

		rule.UpdatedBy = actingUser
		rule.UpdatedAt = s.now()
		if err := s.ruleRepo.Update(txCtx, rule); err != nil {
			return s.classifyWrite("update rule", rule, err)
		}

		updated = rule
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to update rule", "error", err, "id", ruleID, "user_id", actingUser)
		return nil, err
	}

	s.logger.Info("Rule updated", "id", ruleID, "user_id", actingUser, "commands", len(cmds))
	return updated, nil
}

// DeleteRule removes a rule owned by actingUser
func (s *ruleServiceImpl) DeleteRule(ctx context.Context, ruleID, actingUser string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.loadOwned(txCtx, ruleID, actingUser, "delete rule"); err != nil {
			return err
		}
		if err := s.ruleRepo.Delete(txCtx, ruleID); err != nil {
			return approval.WrapPersistence("delete rule", err)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to delete rule", "error", err, "id", ruleID, "user_id", actingUser)
		return err
	}

	s.logger.Info("Rule deleted", "id", ruleID, "user_id", actingUser)
	return nil
}

// GetRule retrieves a rule by ID
func (s *ruleServiceImpl) GetRule(ctx context.Context, ruleID string) (*entity.ApprovalRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		s.logger.Error("Failed to get rule", "error", err, "id", ruleID)
		return nil, approval.WrapPersistence("get rule", err)
	}
	if rule == nil {
		return nil, &approval.NotFoundError{Resource: "approval rule", ID: ruleID}
	}
	return rule, nil
}

// ListRules returns the company's rules grouped by document type, bound ascending
func (s *ruleServiceImpl) ListRules(ctx context.Context, companyID string, documentType entity.DocumentType) ([]*entity.ApprovalRule, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, approval.NewValidationError("companyId", "is required")
	}
	if documentType != "" && !documentType.IsValid() {
		return nil, approval.NewValidationError("documentType", "unknown document type %q", documentType)
	}

	rules, err := s.ruleRepo.ListByCompany(ctx, companyID, documentType)
	if err != nil {
		s.logger.Error("Failed to list rules", "error", err, "company_id", companyID)
		return nil, approval.WrapPersistence("list rules", err)
	}

	sortRules(rules)
	return rules, nil
}

// Resolve loads the company's rules and picks the one governing amount
func (s *ruleServiceImpl) Resolve(ctx context.Context, companyID string, documentType entity.DocumentType, amount decimal.Decimal) (*entity.ApprovalRule, error) {
	if !documentType.IsValid() {
		return nil, approval.NewValidationError("documentType", "unknown document type %q", documentType)
	}

	rules, err := s.ruleRepo.ListByCompany(ctx, companyID, documentType)
	if err != nil {
		return nil, approval.WrapPersistence("load rules", err)
	}

	return approval.ResolveRule(documentType, amount, rules)
}

// ExportRules writes the company's rule register as a spreadsheet
func (s *ruleServiceImpl) ExportRules(ctx context.Context, companyID string, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("rule export is not configured")
	}

	rules, err := s.ListRules(ctx, companyID, "")
	if err != nil {
		return err
	}

	if err := s.exporter.Export(w, companyID, rules); err != nil {
		s.logger.Error("Failed to export rules", "error", err, "company_id", companyID)
		return fmt.Errorf("export rules: %w", err)
	}

	s.logger.Info("Rules exported", "company_id", companyID, "count", len(rules))
	return nil
}

func (s *ruleServiceImpl) loadOwned(ctx context.Context, ruleID, actingUser, action string) (*entity.ApprovalRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, approval.WrapPersistence("get rule", err)
	}
	if rule == nil {
		return nil, &approval.NotFoundError{Resource: "approval rule", ID: ruleID}
	}
	if !rule.IsOwnedBy(actingUser) {
		return nil, &approval.NotAuthorizedError{Action: action, UserID: actingUser, Reason: "only the rule creator may change it"}
	}
	return rule, nil
}

// checkUniqueBound rejects a second enabled rule on the same bound
func (s *ruleServiceImpl) checkUniqueBound(ctx context.Context, rule *entity.ApprovalRule) error {
	existing, err := s.ruleRepo.ListByCompany(ctx, rule.CompanyID, rule.DocumentType)
	if err != nil {
		return approval.WrapPersistence("load rules", err)
	}

	if conflict := approval.ConflictingRule(rule, existing); conflict != nil {
		return approval.NewValidationError("lowerBoundAmount",
			"rule %q already uses lower bound %s", conflict.Name, rule.LowerBoundAmount.String())
	}
	return nil
}

func (s *ruleServiceImpl) classifyWrite(op string, rule *entity.ApprovalRule, err error) error {
	if errors.Is(err, port.ErrConflict) {
		return approval.NewValidationError("lowerBoundAmount",
			"another enabled rule already uses lower bound %s", rule.LowerBoundAmount.String())
	}
	return approval.WrapPersistence(op, err)
}

func sortRules(rules []*entity.ApprovalRule) {
	order := make(map[entity.DocumentType]int, len(entity.DocumentTypes))
	for i, t := range entity.DocumentTypes {
		order[t] = i
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].DocumentType != rules[j].DocumentType {
			return order[rules[i].DocumentType] < order[rules[j].DocumentType]
		}
		return rules[i].LowerBoundAmount.LessThan(rules[j].LowerBoundAmount)
	})
}
