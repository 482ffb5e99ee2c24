package approval

import (
	"strings"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// ValidateRule checks the fields every stored rule must satisfy
func ValidateRule(rule *entity.ApprovalRule) error {
	if rule == nil {
		return NewValidationError("", "rule is required")
	}
	if strings.TrimSpace(rule.CompanyID) == "" {
		return NewValidationError("companyId", "is required")
	}
	if !rule.DocumentType.IsValid() {
		return NewValidationError("documentType", "unknown document type %q", rule.DocumentType)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if rule.LowerBoundAmount.IsNegative() {
		return NewValidationError("lowerBoundAmount", "must not be negative")
	}
	for _, groupID := range rule.ApproverGroupIDs {
		if strings.TrimSpace(groupID) == "" {
			return NewValidationError("approverGroupIds", "must not contain empty ids")
		}
	}
	if len(rule.ApproverGroupIDs) == 0 && !rule.HasDefaultApprover() {
		return NewValidationError("approverGroupIds", "at least one approver group or a default approver is required")
	}
	if strings.TrimSpace(rule.CreatedBy) == "" {
		return NewValidationError("createdBy", "is required")
	}

	return nil
}

// NormalizeIDs trims, de-duplicates and drops empty ids while keeping order
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
