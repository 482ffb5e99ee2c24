package approval

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// ResolveRule picks the enabled rule of documentType with the greatest
// LowerBoundAmount that is <= amount. The lower bound is inclusive.
//
// A nil rule with a nil error means no approval is required. Two enabled rules
// sharing the selected bound produce an AmbiguousRuleError instead of an
// arbitrary pick.
func ResolveRule(documentType entity.DocumentType, amount decimal.Decimal, rules []*entity.ApprovalRule) (*entity.ApprovalRule, error) {
	if !documentType.IsValid() {
		return nil, NewValidationError("documentType", "unknown document type %q", documentType)
	}
	if amount.IsNegative() {
		return nil, NewValidationError("amount", "must not be negative, got %s", amount.String())
	}

	var best *entity.ApprovalRule
	var ties []string

	for _, rule := range rules {
		if rule == nil || !rule.Enabled || rule.DocumentType != documentType {
			continue
		}
		if rule.LowerBoundAmount.GreaterThan(amount) {
			continue
		}

		switch {
		case best == nil || rule.LowerBoundAmount.GreaterThan(best.LowerBoundAmount):
			best = rule
			ties = ties[:0]
		case rule.LowerBoundAmount.Equal(best.LowerBoundAmount):
			ties = append(ties, rule.ID)
		}
	}

	if best == nil {
		return nil, nil
	}

	if len(ties) > 0 {
		return nil, &AmbiguousRuleError{
			DocumentType: documentType,
			Bound:        best.LowerBoundAmount,
			RuleIDs:      append([]string{best.ID}, ties...),
		}
	}

	return best, nil
}

// ConflictingRule returns an enabled rule other than candidate that has the same
// company, document type and lower bound, or nil when candidate keeps bounds unique.
func ConflictingRule(candidate *entity.ApprovalRule, existing []*entity.ApprovalRule) *entity.ApprovalRule {
	if candidate == nil || !candidate.Enabled {
		return nil
	}

	for _, rule := range existing {
		if rule == nil || rule.ID == candidate.ID || !rule.Enabled {
			continue
		}
		if rule.CompanyID == candidate.CompanyID &&
			rule.DocumentType == candidate.DocumentType &&
			rule.LowerBoundAmount.Equal(candidate.LowerBoundAmount) {
			return rule
		}
	}

	return nil
}
