package form

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

func TestDecode_RuleCommands(t *testing.T) {
	payload := []byte(`[
		{"op": "set_string", "field": "name", "value": " Large orders "},
		{"op": "set_bool", "field": "enabled", "value": false},
		{"op": "set_decimal", "field": "lowerBoundAmount", "value": "2500.50"},
		{"op": "set_string_set", "field": "approverGroupIds", "value": ["finance", "finance", "ops"]},
		{"op": "clear", "field": "defaultApproverId"}
	]`)

	cmds, err := Decode(payload, RuleSchema)
	require.NoError(t, err)
	require.Len(t, cmds, 5)

	assert.Equal(t, SetString{Field: "name", Value: " Large orders "}, cmds[0])
	assert.Equal(t, SetBool{Field: "enabled", Value: false}, cmds[1])
	assert.Equal(t, Clear{Field: "defaultApproverId"}, cmds[4])

	rule := &entity.ApprovalRule{Name: "old", Enabled: true, DefaultApproverID: "cfo"}
	require.NoError(t, ApplyToRule(rule, cmds))

	assert.Equal(t, "Large orders", rule.Name)
	assert.False(t, rule.Enabled)
	assert.True(t, decimal.RequireFromString("2500.5").Equal(rule.LowerBoundAmount))
	assert.Equal(t, []string{"finance", "ops"}, rule.ApproverGroupIDs)
	assert.Empty(t, rule.DefaultApproverID)
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unknown field", `[{"op": "set_string", "field": "createdBy", "value": "me"}]`},
		{"unknown op", `[{"op": "append", "field": "name", "value": "x"}]`},
		{"kind mismatch", `[{"op": "set_bool", "field": "name", "value": true}]`},
		{"wrong value type", `[{"op": "set_decimal", "field": "lowerBoundAmount", "value": "abc"}]`},
		{"missing value", `[{"op": "set_string", "field": "name"}]`},
		{"null value", `[{"op": "set_bool", "field": "enabled", "value": null}]`},
		{"clear required field", `[{"op": "clear", "field": "name"}]`},
		{"duplicate field", `[{"op": "set_string", "field": "name", "value": "a"}, {"op": "set_string", "field": "name", "value": "b"}]`},
		{"unknown envelope key", `[{"op": "set_string", "field": "name", "value": "a", "extra": 1}]`},
		{"empty list", `[]`},
		{"not a list", `{"name": "a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), RuleSchema)
			require.Error(t, err)
			assert.True(t, errors.Is(err, approval.ErrValidation), "got %v", err)
		})
	}
}

func TestApplyToDocument(t *testing.T) {
	doc := &entity.Document{Title: "Bolts", SupplierID: "sup-1", Description: "M8"}

	cmds, err := Decode([]byte(`[
		{"op": "set_decimal", "field": "amount", "value": 1200},
		{"op": "clear", "field": "supplierId"},
		{"op": "set_string", "field": "description", "value": "M10 bolts"}
	]`), DocumentSchema)
	require.NoError(t, err)
	require.NoError(t, ApplyToDocument(doc, cmds))

	assert.True(t, decimal.NewFromInt(1200).Equal(doc.Amount))
	assert.Empty(t, doc.SupplierID)
	assert.Equal(t, "M10 bolts", doc.Description)

	t.Run("negative amount", func(t *testing.T) {
		err := ApplyToDocument(doc, []Command{SetDecimal{Field: DocumentFieldAmount, Value: decimal.NewFromInt(-1)}})
		assert.True(t, errors.Is(err, approval.ErrValidation))
	})

	t.Run("blank title", func(t *testing.T) {
		err := ApplyToDocument(doc, []Command{SetString{Field: DocumentFieldTitle, Value: "  "}})
		assert.True(t, errors.Is(err, approval.ErrValidation))
	})

	t.Run("rule field on document", func(t *testing.T) {
		err := ApplyToDocument(doc, []Command{SetBool{Field: RuleFieldEnabled, Value: true}})
		assert.True(t, errors.Is(err, approval.ErrValidation))
	})
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, RuleSchema.Validate([]Command{SetDecimal{Field: RuleFieldLowerBoundAmount, Value: decimal.Zero}}))
	assert.Error(t, RuleSchema.Validate([]Command{SetString{Field: RuleFieldEnabled, Value: "yes"}}))
	assert.Error(t, RuleSchema.Validate([]Command{Clear{Field: RuleFieldEnabled}}))
}
