package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

func TestEligibilityService_CanApprove(t *testing.T) {
	rc := func(amount int64) RuleContext {
		return RuleContext{Amount: decimal.NewFromInt(amount), DocumentType: entity.DocumentTypePurchaseOrder, CompanyID: company}
	}

	tests := []struct {
		name   string
		rc     RuleContext
		userID string
		want   bool
	}{
		{"group A covers 500", rc(500), approverA, true},
		{"group B does not cover 500", rc(500), approverB, false},
		{"group B covers 1500", rc(1500), approverB, true},
		{"outsider", rc(1500), outsider, false},
		{"empty user", rc(500), "", false},
		{"no rule for company", RuleContext{Amount: decimal.NewFromInt(500), DocumentType: entity.DocumentTypePurchaseOrder, CompanyID: "other"}, approverA, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			got, err := f.eligibility.CanApprove(context.Background(), tt.rc, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEligibilityService_CanApprove_IsIdempotent(t *testing.T) {
	f := newFixture()
	rc := RuleContext{Amount: decimal.NewFromInt(500), DocumentType: entity.DocumentTypePurchaseOrder, CompanyID: company}

	first, err := f.eligibility.CanApprove(context.Background(), rc, approverA)
	require.NoError(t, err)
	second, err := f.eligibility.CanApprove(context.Background(), rc, approverA)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Empty(t, f.requests.requests)
	assert.Empty(t, f.history.histories)
}

func TestEligibilityService_CanApprove_DefaultApprover(t *testing.T) {
	f := newFixture()
	f.rules.rules["rule-b"].DefaultApproverID = "cfo"

	got, err := f.eligibility.CanApprove(context.Background(), RuleContext{
		Amount: decimal.NewFromInt(2000), DocumentType: entity.DocumentTypePurchaseOrder, CompanyID: company,
	}, "cfo")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEligibilityService_CanApprove_MembershipFailure(t *testing.T) {
	f := newFixture()
	f.memberships.groupsErr = errStore

	_, err := f.eligibility.CanApprove(context.Background(), RuleContext{
		Amount: decimal.NewFromInt(500), DocumentType: entity.DocumentTypePurchaseOrder, CompanyID: company,
	}, approverA)
	assert.True(t, errors.Is(err, approval.ErrPersistence))
}

func TestEligibilityService_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("no request", func(t *testing.T) {
		f := newFixture()
		perms, err := f.eligibility.Evaluate(ctx, entity.DocumentTypePurchaseOrder, "po-1", outsider)
		require.NoError(t, err)
		assert.Equal(t, approval.Permissions{CanApprove: false, CanCancel: false, CanDelete: true, CanReopen: true}, perms)
	})

	t.Run("pending request", func(t *testing.T) {
		f := newFixture()
		_, err := f.approvals.CreateRequest(ctx, requestInput("po-1", 500))
		require.NoError(t, err)

		perms, err := f.eligibility.Evaluate(ctx, entity.DocumentTypePurchaseOrder, "po-1", requester)
		require.NoError(t, err)
		assert.Equal(t, approval.Permissions{CanApprove: false, CanCancel: true, CanDelete: true, CanReopen: true}, perms)

		perms, err = f.eligibility.Evaluate(ctx, entity.DocumentTypePurchaseOrder, "po-1", outsider)
		require.NoError(t, err)
		assert.Equal(t, approval.Permissions{}, perms)
	})

	t.Run("unknown document type", func(t *testing.T) {
		f := newFixture()
		_, err := f.eligibility.Evaluate(ctx, "invoice", "x", requester)
		assert.True(t, errors.Is(err, approval.ErrValidation))
	})
}
