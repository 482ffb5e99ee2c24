package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/erp-approvals/internal/domain/workflow"
)

// Facts carries what the guards need to know about a document when a trigger fires
type Facts struct {
	// ApprovalRequired is true when a rule matches the document amount
	ApprovalRequired bool

	// HasRequest is true when an approval request was ever raised for the document
	HasRequest bool
}

type factsKey struct{}

// WithFacts attaches guard facts to ctx
func WithFacts(ctx context.Context, facts Facts) context.Context {
	return context.WithValue(ctx, factsKey{}, facts)
}

// FactsFrom returns the guard facts stored in ctx, or the zero value
func FactsFrom(ctx context.Context) Facts {
	facts, _ := ctx.Value(factsKey{}).(Facts)
	return facts
}

func approvalRequired(ctx context.Context) bool { return FactsFrom(ctx).ApprovalRequired }

func approvalNotRequired(ctx context.Context) bool { return !FactsFrom(ctx).ApprovalRequired }

func hasRequest(ctx context.Context) bool { return FactsFrom(ctx).HasRequest }

// BuildApprovalRequestStateMachine creates the lifecycle of an approval request.
// Decided requests may only go back to Pending.
func BuildApprovalRequestStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerReopen, domainwf.StatePending)

	builder.Configure(domainwf.StateRejected).
		Permit(domainwf.TriggerReopen, domainwf.StatePending)

	builder.Configure(domainwf.StateCancelled).
		Permit(domainwf.TriggerReopen, domainwf.StatePending)

	return builder.Build(initialState)
}

// configureApprovalGate wires the states shared by every document type.
// released is the state a document reaches once it no longer needs sign-off.
func configureApprovalGate(builder domainwf.StateMachineBuilder, released domainwf.State) {
	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSubmit, domainwf.StateNeedsApproval, approvalRequired).
		PermitIf(domainwf.TriggerSubmit, released, approvalNotRequired)

	builder.Configure(domainwf.StateNeedsApproval).
		Permit(domainwf.TriggerApprove, released).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerCancel, domainwf.StateDraft)

	builder.Configure(domainwf.StateRejected).
		Permit(domainwf.TriggerRevise, domainwf.StateDraft).
		PermitIf(domainwf.TriggerReopen, domainwf.StateNeedsApproval, hasRequest)

	builder.Configure(released).
		PermitIf(domainwf.TriggerReopen, domainwf.StateNeedsApproval, hasRequest)
}

// BuildPurchaseOrderStateMachine creates the purchase order workflow
func BuildPurchaseOrderStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()
	configureApprovalGate(builder, domainwf.StateApproved)

	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerRelease, domainwf.StateToReceive)

	builder.Configure(domainwf.StateToReceive).
		Permit(domainwf.TriggerReceive, domainwf.StateToInvoice)

	builder.Configure(domainwf.StateToInvoice).
		Permit(domainwf.TriggerInvoice, domainwf.StateCompleted)

	builder.Configure(domainwf.StateCompleted).
		Permit(domainwf.TriggerClose, domainwf.StateClosed)

	// CLOSED is terminal

	return builder.Build(initialState)
}

// BuildRFQStateMachine creates the request-for-quote workflow
func BuildRFQStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()
	configureApprovalGate(builder, domainwf.StateRequested)

	builder.Configure(domainwf.StateRequested).
		Permit(domainwf.TriggerClose, domainwf.StateClosed)

	return builder.Build(initialState)
}

// BuildIssueStateMachine creates the issue workflow
func BuildIssueStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()
	configureApprovalGate(builder, domainwf.StateInProgress)

	builder.Configure(domainwf.StateInProgress).
		Permit(domainwf.TriggerClose, domainwf.StateClosed)

	return builder.Build(initialState)
}

// BuildDocumentStateMachine selects the workflow for a document type
func BuildDocumentStateMachine(documentType entity.DocumentType, initialState domainwf.State) (domainwf.StateMachine, error) {
	if !initialState.IsValid() {
		return nil, fmt.Errorf("%w: %q", domainwf.ErrInvalidState, initialState)
	}

	switch documentType {
	case entity.DocumentTypePurchaseOrder:
		return BuildPurchaseOrderStateMachine(initialState), nil
	case entity.DocumentTypeRequestForQuote:
		return BuildRFQStateMachine(initialState), nil
	case entity.DocumentTypeIssue:
		return BuildIssueStateMachine(initialState), nil
	default:
		return nil, fmt.Errorf("unsupported document type: %q", documentType)
	}
}

// RequestTrigger maps a requested approval status to the trigger that reaches it
func RequestTrigger(target entity.ApprovalStatus) (domainwf.Trigger, bool) {
	switch target {
	case entity.ApprovalStatusApproved:
		return domainwf.TriggerApprove, true
	case entity.ApprovalStatusRejected:
		return domainwf.TriggerReject, true
	case entity.ApprovalStatusCancelled:
		return domainwf.TriggerCancel, true
	case entity.ApprovalStatusPending:
		return domainwf.TriggerReopen, true
	default:
		return "", false
	}
}
