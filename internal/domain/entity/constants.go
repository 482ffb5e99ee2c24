package entity

// DocumentType identifies the business object subject to approval
type DocumentType string

const (
	DocumentTypePurchaseOrder   DocumentType = "purchaseOrder"
	DocumentTypeRequestForQuote DocumentType = "requestForQuote"
	DocumentTypeIssue           DocumentType = "issue"
)

// DocumentTypes lists every supported document type in display order
var DocumentTypes = []DocumentType{
	DocumentTypePurchaseOrder,
	DocumentTypeRequestForQuote,
	DocumentTypeIssue,
}

// IsValid reports whether the document type is supported
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePurchaseOrder, DocumentTypeRequestForQuote, DocumentTypeIssue:
		return true
	default:
		return false
	}
}

// String returns the string representation of the document type
func (t DocumentType) String() string {
	return string(t)
}

// ApprovalStatus is the lifecycle status of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "Pending"
	ApprovalStatusApproved  ApprovalStatus = "Approved"
	ApprovalStatusRejected  ApprovalStatus = "Rejected"
	ApprovalStatusCancelled ApprovalStatus = "Cancelled"
)

// IsValid reports whether the status is a known approval status
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the request has been decided.
// Terminal requests can only move back to Pending.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected || s == ApprovalStatusCancelled
}

// String returns the string representation of the status
func (s ApprovalStatus) String() string {
	return string(s)
}

// Document status constants
const (
	DocumentStatusDraft         = "Draft"
	DocumentStatusNeedsApproval = "Needs Approval"
	DocumentStatusApproved      = "Approved"
	DocumentStatusRejected      = "Rejected"
	DocumentStatusToReceive     = "To Receive"
	DocumentStatusToInvoice     = "To Invoice"
	DocumentStatusCompleted     = "Completed"
	DocumentStatusRequested     = "Requested"
	DocumentStatusInProgress    = "In Progress"
	DocumentStatusClosed        = "Closed"
)

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// History action constants not covered by workflow triggers
const (
	HistoryActionCreate = "CREATE"
	HistoryActionDelete = "DELETE"
)
