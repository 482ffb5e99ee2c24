package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/erp-approvals/internal/domain/workflow"
)

func doc(docType entity.DocumentType, status string) *entity.Document {
	return &entity.Document{
		ID:        "doc-1",
		Type:      docType,
		CompanyID: "company-1",
		Title:     "Steel sheets",
		Amount:    decimal.NewFromInt(500),
		Status:    status,
		CreatedBy: "u1",
	}
}

func TestEngine_NextDocumentState(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	tests := []struct {
		name    string
		doc     *entity.Document
		trigger domainwf.Trigger
		facts   Facts
		want    domainwf.State
		wantErr error
	}{
		{
			name:    "submit with approval required",
			doc:     doc(entity.DocumentTypePurchaseOrder, entity.DocumentStatusDraft),
			trigger: domainwf.TriggerSubmit,
			facts:   Facts{ApprovalRequired: true},
			want:    domainwf.StateNeedsApproval,
		},
		{
			name:    "submit without approval",
			doc:     doc(entity.DocumentTypeIssue, entity.DocumentStatusDraft),
			trigger: domainwf.TriggerSubmit,
			want:    domainwf.StateInProgress,
		},
		{
			name:    "reopen without request",
			doc:     doc(entity.DocumentTypeRequestForQuote, entity.DocumentStatusRejected),
			trigger: domainwf.TriggerReopen,
			wantErr: approval.ErrInvalidTransition,
		},
		{
			name:    "reopen with request",
			doc:     doc(entity.DocumentTypeRequestForQuote, entity.DocumentStatusRejected),
			trigger: domainwf.TriggerReopen,
			facts:   Facts{HasRequest: true},
			want:    domainwf.StateNeedsApproval,
		},
		{
			name:    "closed rejects everything",
			doc:     doc(entity.DocumentTypePurchaseOrder, entity.DocumentStatusClosed),
			trigger: domainwf.TriggerRevise,
			wantErr: approval.ErrInvalidTransition,
		},
		{
			name:    "unknown trigger",
			doc:     doc(entity.DocumentTypePurchaseOrder, entity.DocumentStatusDraft),
			trigger: domainwf.Trigger("EXPLODE"),
			wantErr: approval.ErrValidation,
		},
		{
			name:    "unknown document type",
			doc:     doc(entity.DocumentType("invoice"), entity.DocumentStatusDraft),
			trigger: domainwf.TriggerSubmit,
			wantErr: approval.ErrValidation,
		},
		{
			name:    "unknown status",
			doc:     doc(entity.DocumentTypePurchaseOrder, "Archived"),
			trigger: domainwf.TriggerSubmit,
			wantErr: approval.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.NextDocumentState(ctx, tt.doc, tt.trigger, tt.facts)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_NextDocumentState_ReopenReason(t *testing.T) {
	engine := NewEngine()

	_, err := engine.NextDocumentState(context.Background(),
		doc(entity.DocumentTypePurchaseOrder, entity.DocumentStatusApproved),
		domainwf.TriggerReopen, Facts{})

	var transitionErr *approval.InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "no approval request to reopen", transitionErr.Reason)
	assert.Equal(t, entity.DocumentStatusApproved, transitionErr.From)
}

func TestEngine_PermittedDocumentTriggers(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	triggers, err := engine.PermittedDocumentTriggers(ctx,
		doc(entity.DocumentTypePurchaseOrder, entity.DocumentStatusApproved), Facts{})
	require.NoError(t, err)
	assert.Equal(t, []domainwf.Trigger{domainwf.TriggerRelease}, triggers)

	triggers, err = engine.PermittedDocumentTriggers(ctx,
		doc(entity.DocumentTypePurchaseOrder, entity.DocumentStatusApproved), Facts{HasRequest: true})
	require.NoError(t, err)
	assert.Equal(t, []domainwf.Trigger{domainwf.TriggerRelease, domainwf.TriggerReopen}, triggers)

	triggers, err = engine.PermittedDocumentTriggers(ctx,
		doc(entity.DocumentTypeIssue, entity.DocumentStatusClosed), Facts{HasRequest: true})
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestEngine_RequestTransition(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	tests := []struct {
		name    string
		from    entity.ApprovalStatus
		to      entity.ApprovalStatus
		want    domainwf.Trigger
		wantErr error
	}{
		{"pending to approved", entity.ApprovalStatusPending, entity.ApprovalStatusApproved, domainwf.TriggerApprove, nil},
		{"pending to rejected", entity.ApprovalStatusPending, entity.ApprovalStatusRejected, domainwf.TriggerReject, nil},
		{"pending to cancelled", entity.ApprovalStatusPending, entity.ApprovalStatusCancelled, domainwf.TriggerCancel, nil},
		{"approved reopens", entity.ApprovalStatusApproved, entity.ApprovalStatusPending, domainwf.TriggerReopen, nil},
		{"cancelled reopens", entity.ApprovalStatusCancelled, entity.ApprovalStatusPending, domainwf.TriggerReopen, nil},
		{"approved to rejected", entity.ApprovalStatusApproved, entity.ApprovalStatusRejected, "", approval.ErrInvalidTransition},
		{"rejected to cancelled", entity.ApprovalStatusRejected, entity.ApprovalStatusCancelled, "", approval.ErrInvalidTransition},
		{"pending to pending", entity.ApprovalStatusPending, entity.ApprovalStatusPending, "", approval.ErrInvalidTransition},
		{"unknown target", entity.ApprovalStatusPending, entity.ApprovalStatus("Escalated"), "", approval.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &entity.ApprovalRequest{ID: "req-1", Status: tt.from, RequestedBy: "u1"}
			got, err := engine.RequestTransition(ctx, req, tt.to)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
