package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/application/workflow"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
	"github.com/garyjia/erp-approvals/internal/domain/form"
	domainwf "github.com/garyjia/erp-approvals/internal/domain/workflow"
)

// CreateDocumentInput carries the fields of a new document
type CreateDocumentInput struct {
	Type        entity.DocumentType `json:"type"`
	CompanyID   string              `json:"companyId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	SupplierID  string              `json:"supplierId"`
	Amount      decimal.Decimal     `json:"amount"`
	CreatedBy   string              `json:"-"`
}

// DocumentPermissions is what a user may do with a document right now
type DocumentPermissions struct {
	approval.Permissions
	Triggers []domainwf.Trigger `json:"triggers"`
}

// DocumentService drives purchase orders, RFQs and issues through their workflows
type DocumentService interface {
	CreateDocument(ctx context.Context, input CreateDocumentInput) (*entity.Document, error)
	GetDocument(ctx context.Context, id string) (*entity.Document, error)
	ListDocuments(ctx context.Context, companyID string, documentType entity.DocumentType, limit, offset int) ([]*entity.Document, error)
	UpdateDocument(ctx context.Context, id, actingUser string, cmds []form.Command) (*entity.Document, error)

	// Submit moves a Draft forward and opens an approval request when a rule matches
	Submit(ctx context.Context, id, actingUser string) (*entity.Document, error)

	Approve(ctx context.Context, id, actingUser, comment string) (*entity.Document, error)
	Reject(ctx context.Context, id, actingUser, comment string) (*entity.Document, error)
	Cancel(ctx context.Context, id, actingUser, comment string) (*entity.Document, error)
	Reopen(ctx context.Context, id, actingUser, comment string) (*entity.Document, error)

	// Advance fires one of the fulfillment triggers that need no approval
	Advance(ctx context.Context, id string, trigger domainwf.Trigger, actingUser string) (*entity.Document, error)

	// Delete removes a document that has not been released yet
	Delete(ctx context.Context, id, actingUser string) error

	Permissions(ctx context.Context, id, actingUser string) (*DocumentPermissions, error)
}

var advanceTriggers = map[domainwf.Trigger]bool{
	domainwf.TriggerRelease: true,
	domainwf.TriggerReceive: true,
	domainwf.TriggerInvoice: true,
	domainwf.TriggerClose:   true,
	domainwf.TriggerRevise:  true,
}

var deletableStatuses = map[string]bool{
	entity.DocumentStatusDraft:         true,
	entity.DocumentStatusNeedsApproval: true,
	entity.DocumentStatusRejected:      true,
}

type documentServiceImpl struct {
	rules        RuleService
	eligibility  EligibilityService
	documentRepo port.DocumentRepository
	requestRepo  port.RequestRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
	lifecycle    *requestLifecycle
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(deps ApprovalDeps) DocumentService {
	return &documentServiceImpl{
		rules:        deps.Rules,
		eligibility:  deps.Eligibility,
		documentRepo: deps.DocumentRepo,
		requestRepo:  deps.RequestRepo,
		historyRepo:  deps.HistoryRepo,
		txManager:    deps.TxManager,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		lifecycle:    deps.lifecycle(),
	}
}

// CreateDocument stores a new Draft
func (s *documentServiceImpl) CreateDocument(ctx context.Context, input CreateDocumentInput) (*entity.Document, error) {
	if !input.Type.IsValid() {
		return nil, approval.NewValidationError("type", "unknown document type %q", input.Type)
	}
	if strings.TrimSpace(input.CompanyID) == "" {
		return nil, approval.NewValidationError("companyId", "is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, approval.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		return nil, approval.NewValidationError("createdBy", "is required")
	}
	if input.Amount.IsNegative() {
		return nil, approval.NewValidationError("amount", "must not be negative")
	}

	now := s.lifecycle.now()
	doc := &entity.Document{
		ID:          uuid.NewString(),
		Type:        input.Type,
		CompanyID:   strings.TrimSpace(input.CompanyID),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		SupplierID:  strings.TrimSpace(input.SupplierID),
		Amount:      input.Amount,
		Status:      entity.DocumentStatusDraft,
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		s.logger.Error("Failed to create document", "error", err, "type", input.Type)
		return nil, approval.WrapPersistence("create document", err)
	}

	s.logger.Info("Document created", "id", doc.ID, "type", doc.Type, "company_id", doc.CompanyID)
	return doc, nil
}

// GetDocument retrieves a document by ID
func (s *documentServiceImpl) GetDocument(ctx context.Context, id string) (*entity.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, approval.WrapPersistence("get document", err)
	}
	if doc == nil {
		return nil, &approval.NotFoundError{Resource: "document", ID: id}
	}
	return doc, nil
}

// ListDocuments lists a company's documents, newest first
func (s *documentServiceImpl) ListDocuments(ctx context.Context, companyID string, documentType entity.DocumentType, limit, offset int) ([]*entity.Document, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, approval.NewValidationError("companyId", "is required")
	}
	if documentType != "" && !documentType.IsValid() {
		return nil, approval.NewValidationError("type", "unknown document type %q", documentType)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.documentRepo.List(ctx, companyID, documentType, limit, offset)
	if err != nil {
		return nil, approval.WrapPersistence("list documents", err)
	}
	return docs, nil
}

// UpdateDocument applies form commands to a Draft
func (s *documentServiceImpl) UpdateDocument(ctx context.Context, id, actingUser string, cmds []form.Command) (*entity.Document, error) {
	if len(cmds) == 0 {
		return nil, approval.NewValidationError("commands", "at least one command is required")
	}

	var doc *entity.Document
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.GetDocument(txCtx, id)
		if err != nil {
			return err
		}
		if doc.Status != entity.DocumentStatusDraft {
			return &approval.InvalidTransitionError{From: doc.Status, To: doc.Status, Reason: "only drafts can be edited"}
		}

		if err := form.ApplyToDocument(doc, cmds); err != nil {
			return err
		}

		doc.UpdatedAt = s.lifecycle.now()
		if err := s.documentRepo.Update(txCtx, doc); err != nil {
			if errors.Is(err, port.ErrStaleVersion) {
				return &approval.InvalidTransitionError{From: doc.Status, To: doc.Status, Reason: "concurrent update"}
			}
			return approval.WrapPersistence("update document", err)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to update document", "error", err, "id", id, "user_id", actingUser)
		return nil, err
	}

	s.logger.Info("Document updated", "id", id, "user_id", actingUser, "commands", len(cmds))
	return doc, nil
}

// Submit moves a Draft forward and opens an approval request when a rule matches.
// The status flip and the request write share one transaction.
func (s *documentServiceImpl) Submit(ctx context.Context, id, actingUser string) (*entity.Document, error) {
	if strings.TrimSpace(actingUser) == "" {
		return nil, approval.NewValidationError("userId", "is required")
	}

	var doc *entity.Document
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.GetDocument(txCtx, id)
		if err != nil {
			return err
		}

		rule, err := s.rules.Resolve(txCtx, doc.CompanyID, doc.Type, doc.Amount)
		if err != nil {
			return err
		}

		to, err := s.lifecycle.engine.NextDocumentState(txCtx, doc, domainwf.TriggerSubmit,
			workflow.Facts{ApprovalRequired: rule != nil})
		if err != nil {
			return err
		}

		if rule != nil {
			_, created, err := s.lifecycle.create(txCtx, CreateRequestInput{
				DocumentType: doc.Type,
				DocumentID:   doc.ID,
				Amount:       doc.Amount,
				RequestedBy:  actingUser,
				CompanyID:    doc.CompanyID,
			}, rule)
			if err != nil {
				return err
			}
			events = append(events, created...)
		}

		statusEvent, err := s.lifecycle.moveDocument(txCtx, doc, to, domainwf.TriggerSubmit, actingUser, "")
		if err != nil {
			return err
		}
		events = append(events, statusEvent)
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to submit document", "error", err, "id", id, "user_id", actingUser)
		return nil, err
	}

	publish(ctx, s.dispatcher, events)

	s.logger.Info("Document submitted", "id", id, "status", doc.Status, "user_id", actingUser)
	return doc, nil
}

// Approve signs off the pending request of a document
func (s *documentServiceImpl) Approve(ctx context.Context, id, actingUser, comment string) (*entity.Document, error) {
	return s.decide(ctx, id, entity.ApprovalStatusApproved, actingUser, comment)
}

// Reject turns down the pending request of a document
func (s *documentServiceImpl) Reject(ctx context.Context, id, actingUser, comment string) (*entity.Document, error) {
	return s.decide(ctx, id, entity.ApprovalStatusRejected, actingUser, comment)
}

// Cancel withdraws the pending request and returns the document to Draft
func (s *documentServiceImpl) Cancel(ctx context.Context, id, actingUser, comment string) (*entity.Document, error) {
	return s.decide(ctx, id, entity.ApprovalStatusCancelled, actingUser, comment)
}

// Reopen puts the latest decided request back to Pending
func (s *documentServiceImpl) Reopen(ctx context.Context, id, actingUser, comment string) (*entity.Document, error) {
	return s.decide(ctx, id, entity.ApprovalStatusPending, actingUser, comment)
}

func (s *documentServiceImpl) decide(ctx context.Context, id string, target entity.ApprovalStatus, actingUser, comment string) (*entity.Document, error) {
	if strings.TrimSpace(actingUser) == "" {
		return nil, approval.NewValidationError("userId", "is required")
	}

	var doc *entity.Document
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.GetDocument(txCtx, id)
		if err != nil {
			return err
		}

		request, err := s.requestFor(txCtx, current, target)
		if err != nil {
			return err
		}

		events, err = s.lifecycle.transition(txCtx, request, target, actingUser, comment)
		if err != nil {
			return err
		}

		doc, err = s.GetDocument(txCtx, id)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to decide document", "error", err, "id", id, "target", target, "user_id", actingUser)
		return nil, err
	}

	publish(ctx, s.dispatcher, events)

	s.logger.Info("Document decided", "id", id, "status", doc.Status, "request_status", target, "user_id", actingUser)
	return doc, nil
}

// requestFor picks the request a decision applies to.
// Reopen works on the latest request; the others need a Pending one.
func (s *documentServiceImpl) requestFor(ctx context.Context, doc *entity.Document, target entity.ApprovalStatus) (*entity.ApprovalRequest, error) {
	if target == entity.ApprovalStatusPending {
		request, err := s.requestRepo.GetLatestByDocument(ctx, doc.Type, doc.ID)
		if err != nil {
			return nil, approval.WrapPersistence("get latest request", err)
		}
		if request == nil {
			return nil, &approval.InvalidTransitionError{From: doc.Status, To: entity.DocumentStatusNeedsApproval, Reason: "no approval request to reopen"}
		}
		return request, nil
	}

	request, err := s.requestRepo.GetPendingByDocument(ctx, doc.Type, doc.ID)
	if err != nil {
		return nil, approval.WrapPersistence("get pending request", err)
	}
	if request == nil {
		return nil, &approval.InvalidTransitionError{From: doc.Status, To: target.String(), Reason: "no pending approval request"}
	}
	return request, nil
}

// Advance fires one of the fulfillment triggers that need no approval
func (s *documentServiceImpl) Advance(ctx context.Context, id string, trigger domainwf.Trigger, actingUser string) (*entity.Document, error) {
	if !advanceTriggers[trigger] {
		return nil, approval.NewValidationError("trigger", "%q cannot be fired directly", trigger)
	}
	if strings.TrimSpace(actingUser) == "" {
		return nil, approval.NewValidationError("userId", "is required")
	}

	var doc *entity.Document
	var statusEvent *event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.GetDocument(txCtx, id)
		if err != nil {
			return err
		}

		to, err := s.lifecycle.engine.NextDocumentState(txCtx, doc, trigger, workflow.Facts{})
		if err != nil {
			return err
		}

		statusEvent, err = s.lifecycle.moveDocument(txCtx, doc, to, trigger, actingUser, "")
		return err
	})

	if err != nil {
		s.logger.Error("Failed to advance document", "error", err, "id", id, "trigger", trigger, "user_id", actingUser)
		return nil, err
	}

	publish(ctx, s.dispatcher, []*event.Event{statusEvent})

	s.logger.Info("Document advanced", "id", id, "trigger", trigger, "status", doc.Status, "user_id", actingUser)
	return doc, nil
}

// Delete removes a document that has not been released yet.
// A Pending request is cancelled in the same transaction.
func (s *documentServiceImpl) Delete(ctx context.Context, id, actingUser string) error {
	var doc *entity.Document
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.GetDocument(txCtx, id)
		if err != nil {
			return err
		}

		latest, err := s.requestRepo.GetLatestByDocument(txCtx, doc.Type, doc.ID)
		if err != nil {
			return approval.WrapPersistence("get latest request", err)
		}
		if !approval.CanDelete(latest, actingUser) {
			return &approval.NotAuthorizedError{Action: "delete", UserID: actingUser, Reason: "only the requester may delete a gated document"}
		}
		if !deletableStatuses[doc.Status] {
			return &approval.InvalidTransitionError{From: doc.Status, To: "Deleted", Reason: "document has been released"}
		}

		if latest != nil && latest.IsPending() {
			if err := s.cancelForDelete(txCtx, latest, actingUser); err != nil {
				return err
			}
		}

		if err := s.documentRepo.Delete(txCtx, doc.ID); err != nil {
			return approval.WrapPersistence("delete document", err)
		}

		if err := s.historyRepo.Create(txCtx, &entity.ApprovalHistory{
			DocumentType:   doc.Type,
			DocumentID:     doc.ID,
			ActorID:        actingUser,
			PreviousStatus: doc.Status,
			Action:         entity.HistoryActionDelete,
			Timestamp:      s.lifecycle.now(),
		}); err != nil {
			return approval.WrapPersistence("create history", err)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to delete document", "error", err, "id", id, "user_id", actingUser)
		return err
	}

	publish(ctx, s.dispatcher, []*event.Event{event.NewEvent(event.TypeDocumentDeleted, event.Subject{
		DocumentType: doc.Type.String(),
		DocumentID:   doc.ID,
		CompanyID:    doc.CompanyID,
		ActorID:      actingUser,
	}, map[string]interface{}{"previous_status": doc.Status})})

	s.logger.Info("Document deleted", "id", id, "user_id", actingUser)
	return nil
}

// cancelForDelete withdraws the pending request without touching the document,
// which is about to be removed
func (s *documentServiceImpl) cancelForDelete(ctx context.Context, request *entity.ApprovalRequest, actingUser string) error {
	now := s.lifecycle.now()
	request.Status = entity.ApprovalStatusCancelled
	request.DecidedBy = actingUser
	request.DecidedAt = &now
	request.Comment = "document deleted"
	request.UpdatedAt = now

	if err := s.requestRepo.UpdateStatus(ctx, request); err != nil {
		if errors.Is(err, port.ErrStaleVersion) {
			return &approval.InvalidTransitionError{From: entity.ApprovalStatusPending.String(), To: request.Status.String(), Reason: "concurrent update"}
		}
		return approval.WrapPersistence("cancel request", err)
	}

	if err := s.historyRepo.Create(ctx, &entity.ApprovalHistory{
		RequestID:      request.ID,
		DocumentType:   request.DocumentType,
		DocumentID:     request.DocumentID,
		ActorID:        actingUser,
		PreviousStatus: entity.ApprovalStatusPending.String(),
		NewStatus:      request.Status.String(),
		Action:         domainwf.TriggerCancel.String(),
		Comment:        request.Comment,
		Timestamp:      now,
	}); err != nil {
		return approval.WrapPersistence("create history", err)
	}
	return nil
}

// Permissions returns the approval permissions of actingUser plus the triggers the document accepts
func (s *documentServiceImpl) Permissions(ctx context.Context, id, actingUser string) (*DocumentPermissions, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	latest, err := s.requestRepo.GetLatestByDocument(ctx, doc.Type, doc.ID)
	if err != nil {
		return nil, approval.WrapPersistence("get latest request", err)
	}

	perms, err := s.eligibility.EvaluateRequest(ctx, latest, actingUser)
	if err != nil {
		return nil, err
	}

	rule, err := s.rules.Resolve(ctx, doc.CompanyID, doc.Type, doc.Amount)
	if err != nil && !errors.Is(err, approval.ErrAmbiguousRule) {
		return nil, err
	}

	triggers, err := s.lifecycle.engine.PermittedDocumentTriggers(ctx, doc, workflow.Facts{
		ApprovalRequired: rule != nil,
		HasRequest:       latest != nil,
	})
	if err != nil {
		return nil, err
	}

	return &DocumentPermissions{Permissions: perms, Triggers: triggers}, nil
}
