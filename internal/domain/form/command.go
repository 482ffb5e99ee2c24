// Package form turns loosely typed form payloads into typed field updates.
// Every payload is checked against a fixed per-entity Schema and unknown
// fields are rejected.
package form

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
)

// Op names the kind of field update carried by a command
type Op string

const (
	OpSetString    Op = "set_string"
	OpSetBool      Op = "set_bool"
	OpSetDecimal   Op = "set_decimal"
	OpSetStringSet Op = "set_string_set"
	OpClear        Op = "clear"
)

// Command is a single typed field update. The concrete types are
// SetString, SetBool, SetDecimal, SetStringSet and Clear.
type Command interface {
	FieldName() string
	Op() Op
}

// SetString assigns a string field
type SetString struct {
	Field string
	Value string
}

// SetBool assigns a boolean field
type SetBool struct {
	Field string
	Value bool
}

// SetDecimal assigns a decimal field
type SetDecimal struct {
	Field string
	Value decimal.Decimal
}

// SetStringSet replaces a set-of-ids field
type SetStringSet struct {
	Field  string
	Values []string
}

// Clear resets an optional field to its zero value
type Clear struct {
	Field string
}

func (c SetString) FieldName() string    { return c.Field }
func (c SetBool) FieldName() string      { return c.Field }
func (c SetDecimal) FieldName() string   { return c.Field }
func (c SetStringSet) FieldName() string { return c.Field }
func (c Clear) FieldName() string        { return c.Field }

func (SetString) Op() Op    { return OpSetString }
func (SetBool) Op() Op      { return OpSetBool }
func (SetDecimal) Op() Op   { return OpSetDecimal }
func (SetStringSet) Op() Op { return OpSetStringSet }
func (Clear) Op() Op        { return OpClear }

// RawCommand is the wire form of a command: {"op": ..., "field": ..., "value": ...}
type RawCommand struct {
	Op    Op              `json:"op"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Decode parses a JSON array of raw commands and validates it against schema
func Decode(data []byte, schema Schema) ([]Command, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raws []RawCommand
	if err := dec.Decode(&raws); err != nil {
		return nil, approval.NewValidationError("", "malformed form payload: %v", err)
	}

	return schema.Parse(raws)
}

func decodeValue(raw RawCommand, target interface{}) error {
	if len(raw.Value) == 0 || bytes.Equal(bytes.TrimSpace(raw.Value), []byte("null")) {
		return approval.NewValidationError(raw.Field, "%s requires a value", raw.Op)
	}
	if err := json.Unmarshal(raw.Value, target); err != nil {
		return approval.NewValidationError(raw.Field, "invalid value for %s: %v", raw.Op, err)
	}
	return nil
}

func (o Op) kind() (Kind, error) {
	switch o {
	case OpSetString:
		return KindString, nil
	case OpSetBool:
		return KindBool, nil
	case OpSetDecimal:
		return KindDecimal, nil
	case OpSetStringSet:
		return KindStringSet, nil
	default:
		return "", fmt.Errorf("unknown op %q", o)
	}
}
