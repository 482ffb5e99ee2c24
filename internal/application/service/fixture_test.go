package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/application/workflow"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

const (
	company   = "acme"
	requester = "u-requester"
	approverA = "u-approver-a"
	approverB = "u-approver-b"
	outsider  = "u-outsider"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	rules       *mockRuleRepo
	requests    *mockRequestRepo
	documents   *mockDocumentRepo
	history     *mockHistoryRepo
	memberships *mockMembershipRepo
	tx          *mockTxManager
	dispatcher  *mockDispatcher
	ruleService RuleService
	eligibility EligibilityService
	approvals   ApprovalService
	docService  DocumentService
}

func testRule(id string, bound int64, groups ...string) *entity.ApprovalRule {
	return &entity.ApprovalRule{
		ID:               id,
		CompanyID:        company,
		DocumentType:     entity.DocumentTypePurchaseOrder,
		Name:             id,
		Enabled:          true,
		LowerBoundAmount: decimal.NewFromInt(bound),
		ApproverGroupIDs: groups,
		CreatedBy:        "owner",
		CreatedAt:        fixedNow,
		UpdatedAt:        fixedNow,
	}
}

func testDocument(id string, amount int64, status string) *entity.Document {
	return &entity.Document{
		ID:        id,
		Type:      entity.DocumentTypePurchaseOrder,
		CompanyID: company,
		Title:     "Purchase " + id,
		Amount:    decimal.NewFromInt(amount),
		Status:    status,
		CreatedBy: requester,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
}

// newFixture wires the services over in-memory mocks.
// Rules {0 -> group A} and {1000 -> group B} govern purchase orders.
func newFixture(docs ...*entity.Document) *fixture {
	f := &fixture{
		rules:     newMockRuleRepo(testRule("rule-a", 0, "group-a"), testRule("rule-b", 1000, "group-b")),
		requests:  newMockRequestRepo(),
		documents: newMockDocumentRepo(docs...),
		history:   &mockHistoryRepo{},
		memberships: newMockMembershipRepo(map[string][]string{
			approverA: {"group-a"},
			approverB: {"group-b"},
		}),
		tx:         &mockTxManager{},
		dispatcher: &mockDispatcher{},
	}

	f.ruleService = NewRuleService(f.rules, &mockExporter{}, f.tx, &mockLogger{})
	f.eligibility = NewEligibilityService(f.ruleService, f.requests, f.memberships)

	deps := ApprovalDeps{
		Rules:        f.ruleService,
		Eligibility:  f.eligibility,
		RuleRepo:     f.rules,
		RequestRepo:  f.requests,
		HistoryRepo:  f.history,
		DocumentRepo: f.documents,
		Memberships:  f.memberships,
		TxManager:    f.tx,
		Dispatcher:   f.dispatcher,
		Engine:       workflow.NewEngine(),
		Logger:       &mockLogger{},
		Now:          func() time.Time { return fixedNow },
	}
	f.approvals = NewApprovalService(deps)
	f.docService = NewDocumentService(deps)

	return f
}
