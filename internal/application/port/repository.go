package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

var (
	// ErrStaleVersion is returned by versioned updates when the row changed since it was read
	ErrStaleVersion = errors.New("stale version")

	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("unique constraint conflict")
)

// RuleRepository defines persistence operations for ApprovalRule
type RuleRepository interface {
	Create(ctx context.Context, rule *entity.ApprovalRule) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error)
	Update(ctx context.Context, rule *entity.ApprovalRule) error
	Delete(ctx context.Context, id string) error

	// ListByCompany returns rules ordered by document type and bound.
	// An empty documentType returns every type.
	ListByCompany(ctx context.Context, companyID string, documentType entity.DocumentType) ([]*entity.ApprovalRule, error)
}

// RequestRepository defines persistence operations for ApprovalRequest
type RequestRepository interface {
	Create(ctx context.Context, request *entity.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error)

	// GetPendingByDocument returns the Pending request of a document, or nil
	GetPendingByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error)

	// GetLatestByDocument returns the most recently created request of a document, or nil
	GetLatestByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error)

	// UpdateStatus writes status and decision fields when the stored version
	// equals request.Version, then increments request.Version.
	// Returns ErrStaleVersion when another writer got there first.
	UpdateStatus(ctx context.Context, request *entity.ApprovalRequest) error

	ListPending(ctx context.Context, companyID string) ([]*entity.ApprovalRequest, error)
}

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)

	// Update writes fields and status when the stored version equals doc.Version,
	// then increments doc.Version. Returns ErrStaleVersion otherwise.
	Update(ctx context.Context, doc *entity.Document) error

	Delete(ctx context.Context, id string) error
	List(ctx context.Context, companyID string, documentType entity.DocumentType, limit, offset int) ([]*entity.Document, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error)
	GetByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) ([]*entity.ApprovalHistory, error)
}

// MembershipRepository defines persistence operations for approver group membership
type MembershipRepository interface {
	// GroupsForUser returns the ids of every group userID belongs to in companyID
	GroupsForUser(ctx context.Context, companyID, userID string) ([]string, error)
	AddMember(ctx context.Context, membership *entity.GroupMembership) error
	RemoveMember(ctx context.Context, companyID, groupID, userID string) error
	ListMembers(ctx context.Context, companyID, groupID string) ([]string, error)
}

// NotificationRepository defines persistence operations for notification delivery records
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
