package form

import (
	"strings"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// Rule field names
const (
	RuleFieldName              = "name"
	RuleFieldEnabled           = "enabled"
	RuleFieldLowerBoundAmount  = "lowerBoundAmount"
	RuleFieldApproverGroupIDs  = "approverGroupIds"
	RuleFieldDefaultApproverID = "defaultApproverId"
)

// Document field names
const (
	DocumentFieldTitle       = "title"
	DocumentFieldDescription = "description"
	DocumentFieldAmount      = "amount"
	DocumentFieldSupplierID  = "supplierId"
)

// RuleSchema lists the editable fields of an approval rule
var RuleSchema = Schema{
	Entity: "approval rule",
	Fields: map[string]FieldSpec{
		RuleFieldName:              {Kind: KindString},
		RuleFieldEnabled:           {Kind: KindBool},
		RuleFieldLowerBoundAmount:  {Kind: KindDecimal},
		RuleFieldApproverGroupIDs:  {Kind: KindStringSet, Clearable: true},
		RuleFieldDefaultApproverID: {Kind: KindString, Clearable: true},
	},
}

// DocumentSchema lists the editable fields of a document
var DocumentSchema = Schema{
	Entity: "document",
	Fields: map[string]FieldSpec{
		DocumentFieldTitle:       {Kind: KindString},
		DocumentFieldDescription: {Kind: KindString, Clearable: true},
		DocumentFieldAmount:      {Kind: KindDecimal},
		DocumentFieldSupplierID:  {Kind: KindString, Clearable: true},
	},
}

// ApplyToRule applies validated commands to rule in order
func ApplyToRule(rule *entity.ApprovalRule, cmds []Command) error {
	if err := RuleSchema.Validate(cmds); err != nil {
		return err
	}

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case SetString:
			switch c.Field {
			case RuleFieldName:
				rule.Name = strings.TrimSpace(c.Value)
			case RuleFieldDefaultApproverID:
				rule.DefaultApproverID = strings.TrimSpace(c.Value)
			}
		case SetBool:
			rule.Enabled = c.Value
		case SetDecimal:
			rule.LowerBoundAmount = c.Value
		case SetStringSet:
			rule.ApproverGroupIDs = approval.NormalizeIDs(c.Values)
		case Clear:
			switch c.Field {
			case RuleFieldApproverGroupIDs:
				rule.ApproverGroupIDs = nil
			case RuleFieldDefaultApproverID:
				rule.DefaultApproverID = ""
			}
		}
	}

	return nil
}

// ApplyToDocument applies validated commands to doc in order
func ApplyToDocument(doc *entity.Document, cmds []Command) error {
	if err := DocumentSchema.Validate(cmds); err != nil {
		return err
	}

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case SetString:
			switch c.Field {
			case DocumentFieldTitle:
				doc.Title = strings.TrimSpace(c.Value)
			case DocumentFieldDescription:
				doc.Description = c.Value
			case DocumentFieldSupplierID:
				doc.SupplierID = strings.TrimSpace(c.Value)
			}
		case SetDecimal:
			if c.Value.IsNegative() {
				return approval.NewValidationError(DocumentFieldAmount, "must not be negative")
			}
			doc.Amount = c.Value
		case Clear:
			switch c.Field {
			case DocumentFieldDescription:
				doc.Description = ""
			case DocumentFieldSupplierID:
				doc.SupplierID = ""
			}
		}
	}

	if doc.Title == "" {
		return approval.NewValidationError(DocumentFieldTitle, "is required")
	}

	return nil
}
