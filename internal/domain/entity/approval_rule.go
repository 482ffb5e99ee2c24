package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalRule maps a document type and an amount threshold to the people who must sign off.
// For one company and document type, enabled rules never share a LowerBoundAmount.
type ApprovalRule struct {
	ID                string          `json:"id"`
	CompanyID         string          `json:"company_id"`
	DocumentType      DocumentType    `json:"document_type"`
	Name              string          `json:"name"`
	Enabled           bool            `json:"enabled"`
	LowerBoundAmount  decimal.Decimal `json:"lower_bound_amount"`
	ApproverGroupIDs  []string        `json:"approver_group_ids"`
	DefaultApproverID string          `json:"default_approver_id,omitempty"`
	CreatedBy         string          `json:"created_by"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HasDefaultApprover reports whether the rule names a fallback approver
func (r *ApprovalRule) HasDefaultApprover() bool {
	return r.DefaultApproverID != ""
}

// IsOwnedBy reports whether userID created the rule
func (r *ApprovalRule) IsOwnedBy(userID string) bool {
	return userID != "" && r.CreatedBy == userID
}
