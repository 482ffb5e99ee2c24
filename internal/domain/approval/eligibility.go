package approval

import "github.com/garyjia/erp-approvals/internal/domain/entity"

// Permissions is the set of approval actions a user may take on a document
type Permissions struct {
	CanApprove bool `json:"can_approve"`
	CanCancel  bool `json:"can_cancel"`
	CanDelete  bool `json:"can_delete"`
	CanReopen  bool `json:"can_reopen"`
}

// Ungated is returned for documents without any approval request.
// There is nothing to approve or cancel, and nothing restricts delete or reopen.
func Ungated() Permissions {
	return Permissions{
		CanDelete: true,
		CanReopen: true,
	}
}

// CanApproveRule reports whether userID is in one of the rule's approver groups
// or is its default approver
func CanApproveRule(rule *entity.ApprovalRule, userID string, userGroups []string) bool {
	if rule == nil || userID == "" {
		return false
	}

	if rule.HasDefaultApprover() && rule.DefaultApproverID == userID {
		return true
	}

	return intersects(rule.ApproverGroupIDs, userGroups)
}

// CanCancel reports whether userID may withdraw the request
func CanCancel(request *entity.ApprovalRequest, userID string) bool {
	return request != nil && request.IsPending() && request.IsRequester(userID)
}

// CanDelete reports whether userID may delete the gated document.
// Without a request nothing is gated.
func CanDelete(request *entity.ApprovalRequest, userID string) bool {
	if request == nil {
		return true
	}
	return request.IsRequester(userID)
}

// CanReopen reports whether userID may move a decided request back to Pending.
// Without a request nothing is gated.
func CanReopen(request *entity.ApprovalRequest, userID string, canApprove bool) bool {
	if request == nil {
		return true
	}
	return request.IsRequester(userID) || canApprove
}

// Evaluate combines the predicates for one request
func Evaluate(request *entity.ApprovalRequest, userID string, canApprove bool) Permissions {
	if request == nil {
		return Ungated()
	}

	return Permissions{
		CanApprove: canApprove,
		CanCancel:  CanCancel(request, userID),
		CanDelete:  CanDelete(request, userID),
		CanReopen:  CanReopen(request, userID, canApprove),
	}
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; ok {
			return true
		}
	}

	return false
}
