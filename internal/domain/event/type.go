package event

// Type identifies the type of domain event
type Type string

const (
	TypeApprovalRequested Type = "approval.requested"
	TypeApprovalApproved  Type = "approval.approved"
	TypeApprovalRejected  Type = "approval.rejected"
	TypeApprovalCancelled Type = "approval.cancelled"
	TypeApprovalReopened  Type = "approval.reopened"
	TypeStatusChanged     Type = "document.status_changed"
	TypeDocumentDeleted   Type = "document.deleted"
)

// ApprovalTypes lists the events emitted by the approval request lifecycle
var ApprovalTypes = []Type{
	TypeApprovalRequested,
	TypeApprovalApproved,
	TypeApprovalRejected,
	TypeApprovalCancelled,
	TypeApprovalReopened,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApprovalRequested,
		TypeApprovalApproved,
		TypeApprovalRejected,
		TypeApprovalCancelled,
		TypeApprovalReopened,
		TypeStatusChanged,
		TypeDocumentDeleted:
		return true
	default:
		return false
	}
}
