package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalRequest gates a document until someone eligible signs off.
// ApproverGroupIDs and DefaultApproverID are copied from the rule at creation.
type ApprovalRequest struct {
	ID                string          `json:"id"`
	DocumentType      DocumentType    `json:"document_type"`
	DocumentID        string          `json:"document_id"`
	CompanyID         string          `json:"company_id"`
	Amount            decimal.Decimal `json:"amount"`
	RequestedBy       string          `json:"requested_by"`
	Status            ApprovalStatus  `json:"status"`
	RuleID            string          `json:"rule_id"`
	ApproverGroupIDs  []string        `json:"approver_group_ids"`
	DefaultApproverID string          `json:"default_approver_id,omitempty"`
	DecidedBy         string          `json:"decided_by,omitempty"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	Comment           string          `json:"comment,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsPending reports whether the request is still awaiting a decision
func (r *ApprovalRequest) IsPending() bool {
	return r.Status == ApprovalStatusPending
}

// IsRequester reports whether userID raised the request
func (r *ApprovalRequest) IsRequester(userID string) bool {
	return userID != "" && r.RequestedBy == userID
}
