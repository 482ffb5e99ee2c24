package workflow

import (
	"context"
	"errors"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/erp-approvals/internal/domain/workflow"
)

// Engine answers transition questions for documents and approval requests.
// It never persists; callers write the resolved state inside their own transaction.
type Engine interface {
	// NextDocumentState resolves where trigger moves a document
	NextDocumentState(ctx context.Context, doc *entity.Document, trigger domainwf.Trigger, facts Facts) (domainwf.State, error)

	// PermittedDocumentTriggers lists the triggers a document accepts given facts
	PermittedDocumentTriggers(ctx context.Context, doc *entity.Document, facts Facts) ([]domainwf.Trigger, error)

	// RequestTransition validates moving a request to target and returns the trigger used
	RequestTransition(ctx context.Context, request *entity.ApprovalRequest, target entity.ApprovalStatus) (domainwf.Trigger, error)
}

type engineImpl struct{}

// NewEngine creates a new workflow engine
func NewEngine() Engine {
	return &engineImpl{}
}

// NextDocumentState resolves where trigger moves a document
func (e *engineImpl) NextDocumentState(ctx context.Context, doc *entity.Document, trigger domainwf.Trigger, facts Facts) (domainwf.State, error) {
	if doc == nil {
		return "", approval.NewValidationError("document", "is required")
	}
	if !trigger.IsValid() {
		return "", approval.NewValidationError("trigger", "unknown trigger %q", trigger)
	}

	machine, err := e.documentMachine(doc)
	if err != nil {
		return "", err
	}

	to, err := machine.Peek(WithFacts(ctx, facts), trigger)
	if err != nil {
		return "", translate(doc.Status, trigger, err)
	}

	return to, nil
}

// PermittedDocumentTriggers lists the triggers a document accepts given facts
func (e *engineImpl) PermittedDocumentTriggers(ctx context.Context, doc *entity.Document, facts Facts) ([]domainwf.Trigger, error) {
	if doc == nil {
		return nil, approval.NewValidationError("document", "is required")
	}

	machine, err := e.documentMachine(doc)
	if err != nil {
		return nil, err
	}

	return machine.PermittedTriggersWith(WithFacts(ctx, facts)), nil
}

// RequestTransition validates moving a request to target and returns the trigger used
func (e *engineImpl) RequestTransition(ctx context.Context, request *entity.ApprovalRequest, target entity.ApprovalStatus) (domainwf.Trigger, error) {
	if request == nil {
		return "", approval.NewValidationError("request", "is required")
	}

	trigger, ok := RequestTrigger(target)
	if !ok {
		return "", approval.NewValidationError("status", "unknown approval status %q", target)
	}

	from := domainwf.State(request.Status)
	if !from.IsValid() {
		return "", &approval.InvalidTransitionError{From: request.Status.String(), To: target.String(), Reason: "unknown current status"}
	}

	machine := BuildApprovalRequestStateMachine(from)
	if _, err := machine.Peek(ctx, trigger); err != nil {
		return "", &approval.InvalidTransitionError{From: request.Status.String(), To: target.String()}
	}

	return trigger, nil
}

func (e *engineImpl) documentMachine(doc *entity.Document) (domainwf.StateMachine, error) {
	state := domainwf.State(doc.Status)
	if !state.IsValid() {
		return nil, &approval.InvalidTransitionError{From: doc.Status, Reason: "unknown document status"}
	}

	machine, err := BuildDocumentStateMachine(doc.Type, state)
	if err != nil {
		return nil, approval.NewValidationError("type", "%v", err)
	}

	return machine, nil
}

func translate(from string, trigger domainwf.Trigger, err error) error {
	reason := "not permitted"
	if errors.Is(err, domainwf.ErrGuardFailed) {
		reason = "precondition not met"
		if trigger == domainwf.TriggerReopen {
			reason = "no approval request to reopen"
		}
	}

	return &approval.InvalidTransitionError{From: from, To: trigger.String(), Reason: reason}
}
