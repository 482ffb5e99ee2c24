package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/application/workflow"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
	domainwf "github.com/garyjia/erp-approvals/internal/domain/workflow"
)

// requestLifecycle holds the request writes shared by ApprovalService and DocumentService.
// Every method expects to run inside a transaction and returns the events to
// dispatch once that transaction commits.
type requestLifecycle struct {
	requestRepo  port.RequestRepository
	historyRepo  port.HistoryRepository
	documentRepo port.DocumentRepository
	eligibility  EligibilityService
	engine       workflow.Engine
	now          func() time.Time
}

var requestEventTypes = map[domainwf.Trigger]event.Type{
	domainwf.TriggerApprove: event.TypeApprovalApproved,
	domainwf.TriggerReject:  event.TypeApprovalRejected,
	domainwf.TriggerCancel:  event.TypeApprovalCancelled,
	domainwf.TriggerReopen:  event.TypeApprovalReopened,
}

// create stores a Pending request that snapshots rule
func (l *requestLifecycle) create(ctx context.Context, input CreateRequestInput, rule *entity.ApprovalRule) (*entity.ApprovalRequest, []*event.Event, error) {
	pending, err := l.requestRepo.GetPendingByDocument(ctx, input.DocumentType, input.DocumentID)
	if err != nil {
		return nil, nil, approval.WrapPersistence("get pending request", err)
	}
	if pending != nil {
		return nil, nil, approval.NewValidationError("documentId",
			"document already has pending approval request %s", pending.ID)
	}

	now := l.now()
	request := &entity.ApprovalRequest{
		ID:                uuid.NewString(),
		DocumentType:      input.DocumentType,
		DocumentID:        input.DocumentID,
		CompanyID:         input.CompanyID,
		Amount:            input.Amount,
		RequestedBy:       input.RequestedBy,
		Status:            entity.ApprovalStatusPending,
		RuleID:            rule.ID,
		ApproverGroupIDs:  append([]string(nil), rule.ApproverGroupIDs...),
		DefaultApproverID: rule.DefaultApproverID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := l.requestRepo.Create(ctx, request); err != nil {
		if errors.Is(err, port.ErrConflict) {
			return nil, nil, approval.NewValidationError("documentId", "document already has a pending approval request")
		}
		return nil, nil, approval.WrapPersistence("create request", err)
	}

	if err := l.historyRepo.Create(ctx, &entity.ApprovalHistory{
		RequestID:    request.ID,
		DocumentType: request.DocumentType,
		DocumentID:   request.DocumentID,
		ActorID:      input.RequestedBy,
		NewStatus:    request.Status.String(),
		Action:       entity.HistoryActionCreate,
		Timestamp:    now,
	}); err != nil {
		return nil, nil, approval.WrapPersistence("create history", err)
	}

	return request, []*event.Event{requestEvent(event.TypeApprovalRequested, request, input.RequestedBy, "")}, nil
}

// transition moves request to target and keeps the stored document in step
func (l *requestLifecycle) transition(ctx context.Context, request *entity.ApprovalRequest, target entity.ApprovalStatus, actingUser, comment string) ([]*event.Event, error) {
	trigger, err := l.engine.RequestTransition(ctx, request, target)
	if err != nil {
		return nil, err
	}

	if err := l.authorize(ctx, request, trigger, actingUser); err != nil {
		return nil, err
	}

	if trigger == domainwf.TriggerReopen {
		if err := l.ensureNoOtherPending(ctx, request); err != nil {
			return nil, err
		}
	}

	now := l.now()
	previous := request.Status
	request.Status = target
	request.Comment = comment
	request.UpdatedAt = now
	if target == entity.ApprovalStatusPending {
		request.DecidedBy = ""
		request.DecidedAt = nil
	} else {
		request.DecidedBy = actingUser
		request.DecidedAt = &now
	}

	if err := l.requestRepo.UpdateStatus(ctx, request); err != nil {
		switch {
		case errors.Is(err, port.ErrStaleVersion):
			return nil, &approval.InvalidTransitionError{From: previous.String(), To: target.String(), Reason: "concurrent update"}
		case errors.Is(err, port.ErrConflict):
			return nil, &approval.InvalidTransitionError{From: previous.String(), To: target.String(), Reason: "document already has a pending request"}
		}
		return nil, approval.WrapPersistence("update request status", err)
	}

	if err := l.historyRepo.Create(ctx, &entity.ApprovalHistory{
		RequestID:      request.ID,
		DocumentType:   request.DocumentType,
		DocumentID:     request.DocumentID,
		ActorID:        actingUser,
		PreviousStatus: previous.String(),
		NewStatus:      target.String(),
		Action:         trigger.String(),
		Comment:        comment,
		Timestamp:      now,
	}); err != nil {
		return nil, approval.WrapPersistence("create history", err)
	}

	events := []*event.Event{requestEvent(requestEventTypes[trigger], request, actingUser, previous.String())}

	statusEvent, err := l.syncDocument(ctx, request, trigger, actingUser)
	if err != nil {
		return nil, err
	}
	if statusEvent != nil {
		events = append(events, statusEvent)
	}

	return events, nil
}

// ensureNoOtherPending refuses to reopen request while a newer request for the
// same document is still Pending
func (l *requestLifecycle) ensureNoOtherPending(ctx context.Context, request *entity.ApprovalRequest) error {
	pending, err := l.requestRepo.GetPendingByDocument(ctx, request.DocumentType, request.DocumentID)
	if err != nil {
		return approval.WrapPersistence("get pending request", err)
	}
	if pending != nil && pending.ID != request.ID {
		return &approval.InvalidTransitionError{
			From:   request.Status.String(),
			To:     entity.ApprovalStatusPending.String(),
			Reason: "document already has pending request " + pending.ID,
		}
	}
	return nil
}

// ensureUnmanaged refuses a standalone request for a document this service
// stores. Those documents open their requests through Submit, which moves the
// document to Needs Approval in the same transaction.
func (l *requestLifecycle) ensureUnmanaged(ctx context.Context, documentType entity.DocumentType, documentID string) error {
	if l.documentRepo == nil {
		return nil
	}

	doc, err := l.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return approval.WrapPersistence("get document", err)
	}
	if doc != nil && doc.Type == documentType {
		return approval.NewValidationError("documentId",
			"document %s is managed by the document workflow, submit it instead", documentID)
	}
	return nil
}

func (l *requestLifecycle) authorize(ctx context.Context, request *entity.ApprovalRequest, trigger domainwf.Trigger, actingUser string) error {
	switch trigger {
	case domainwf.TriggerCancel:
		if !approval.CanCancel(request, actingUser) {
			return &approval.NotAuthorizedError{Action: "cancel", UserID: actingUser, Reason: "only the requester may cancel a pending request"}
		}
		return nil
	}

	canApprove, err := l.eligibility.CanApprove(ctx, RuleContext{
		Amount:       request.Amount,
		DocumentType: request.DocumentType,
		CompanyID:    request.CompanyID,
	}, actingUser)
	if err != nil {
		return err
	}

	switch trigger {
	case domainwf.TriggerApprove, domainwf.TriggerReject:
		if !canApprove {
			return &approval.NotAuthorizedError{Action: strings.ToLower(trigger.String()), UserID: actingUser, Reason: "not an approver for this amount"}
		}
	case domainwf.TriggerReopen:
		if !approval.CanReopen(request, actingUser, canApprove) {
			return &approval.NotAuthorizedError{Action: "reopen", UserID: actingUser, Reason: "only the requester or an approver may reopen"}
		}
	}

	return nil
}

// syncDocument fires the matching trigger on the stored document, if there is one
func (l *requestLifecycle) syncDocument(ctx context.Context, request *entity.ApprovalRequest, trigger domainwf.Trigger, actingUser string) (*event.Event, error) {
	if l.documentRepo == nil {
		return nil, nil
	}

	doc, err := l.documentRepo.GetByID(ctx, request.DocumentID)
	if err != nil {
		return nil, approval.WrapPersistence("get document", err)
	}
	if doc == nil || doc.Type != request.DocumentType {
		return nil, nil
	}

	to, err := l.engine.NextDocumentState(ctx, doc, trigger, workflow.Facts{ApprovalRequired: true, HasRequest: true})
	if err != nil {
		return nil, err
	}

	return l.moveDocument(ctx, doc, to, trigger, actingUser, "")
}

// moveDocument persists a document status change with its history entry
func (l *requestLifecycle) moveDocument(ctx context.Context, doc *entity.Document, to domainwf.State, trigger domainwf.Trigger, actingUser, comment string) (*event.Event, error) {
	previous := doc.Status
	doc.Status = to.String()
	doc.UpdatedAt = l.now()

	if err := l.documentRepo.Update(ctx, doc); err != nil {
		if errors.Is(err, port.ErrStaleVersion) {
			return nil, &approval.InvalidTransitionError{From: previous, To: doc.Status, Reason: "concurrent update"}
		}
		return nil, approval.WrapPersistence("update document", err)
	}

	if err := l.historyRepo.Create(ctx, &entity.ApprovalHistory{
		DocumentType:   doc.Type,
		DocumentID:     doc.ID,
		ActorID:        actingUser,
		PreviousStatus: previous,
		NewStatus:      doc.Status,
		Action:         trigger.String(),
		Comment:        comment,
		Timestamp:      doc.UpdatedAt,
	}); err != nil {
		return nil, approval.WrapPersistence("create history", err)
	}

	return event.NewEvent(event.TypeStatusChanged, event.Subject{
		DocumentType: doc.Type.String(),
		DocumentID:   doc.ID,
		CompanyID:    doc.CompanyID,
		ActorID:      actingUser,
	}, map[string]interface{}{
		"previous_status": previous,
		"new_status":      doc.Status,
		"trigger":         trigger.String(),
	}), nil
}

func requestEvent(eventType event.Type, request *entity.ApprovalRequest, actorID, previous string) *event.Event {
	return event.NewEvent(eventType, event.Subject{
		RequestID:    request.ID,
		DocumentType: request.DocumentType.String(),
		DocumentID:   request.DocumentID,
		CompanyID:    request.CompanyID,
		ActorID:      actorID,
	}, map[string]interface{}{
		"previous_status":     previous,
		"new_status":          request.Status.String(),
		"requested_by":        request.RequestedBy,
		"approver_group_ids":  append([]string(nil), request.ApproverGroupIDs...),
		"default_approver_id": request.DefaultApproverID,
		"amount":              request.Amount.String(),
		"comment":             request.Comment,
	})
}

func publish(ctx context.Context, d dispatcher.Dispatcher, events []*event.Event) {
	if d == nil {
		return
	}
	for _, evt := range events {
		d.DispatchAsync(ctx, evt)
	}
}
