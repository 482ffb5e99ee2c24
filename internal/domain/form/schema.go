package form

import (
	"github.com/garyjia/erp-approvals/internal/domain/approval"
)

// Kind is the value type of a schema field
type Kind string

const (
	KindString    Kind = "string"
	KindBool      Kind = "bool"
	KindDecimal   Kind = "decimal"
	KindStringSet Kind = "string_set"
)

// FieldSpec describes one editable field
type FieldSpec struct {
	Kind      Kind
	Clearable bool
}

// Schema is the fixed set of editable fields of an entity
type Schema struct {
	Entity string
	Fields map[string]FieldSpec
}

// Parse converts raw commands into typed commands, rejecting unknown fields,
// unknown ops and kind mismatches
func (s Schema) Parse(raws []RawCommand) ([]Command, error) {
	if len(raws) == 0 {
		return nil, approval.NewValidationError("", "no field updates given for %s", s.Entity)
	}

	cmds := make([]Command, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		spec, ok := s.Fields[raw.Field]
		if !ok {
			return nil, approval.NewValidationError(raw.Field, "unknown field for %s", s.Entity)
		}
		if _, dup := seen[raw.Field]; dup {
			return nil, approval.NewValidationError(raw.Field, "updated more than once")
		}
		seen[raw.Field] = struct{}{}

		cmd, err := s.parseOne(raw, spec)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

// Validate checks commands built in code against the schema
func (s Schema) Validate(cmds []Command) error {
	for _, cmd := range cmds {
		spec, ok := s.Fields[cmd.FieldName()]
		if !ok {
			return approval.NewValidationError(cmd.FieldName(), "unknown field for %s", s.Entity)
		}
		if cmd.Op() == OpClear {
			if !spec.Clearable {
				return approval.NewValidationError(cmd.FieldName(), "cannot be cleared")
			}
			continue
		}
		kind, err := cmd.Op().kind()
		if err != nil || kind != spec.Kind {
			return approval.NewValidationError(cmd.FieldName(), "expects a %s value", spec.Kind)
		}
	}
	return nil
}

func (s Schema) parseOne(raw RawCommand, spec FieldSpec) (Command, error) {
	if raw.Op == OpClear {
		if !spec.Clearable {
			return nil, approval.NewValidationError(raw.Field, "cannot be cleared")
		}
		return Clear{Field: raw.Field}, nil
	}

	kind, err := raw.Op.kind()
	if err != nil {
		return nil, approval.NewValidationError(raw.Field, "%v", err)
	}
	if kind != spec.Kind {
		return nil, approval.NewValidationError(raw.Field, "expects a %s value, got %s", spec.Kind, raw.Op)
	}

	switch raw.Op {
	case OpSetString:
		cmd := SetString{Field: raw.Field}
		if err := decodeValue(raw, &cmd.Value); err != nil {
			return nil, err
		}
		return cmd, nil
	case OpSetBool:
		cmd := SetBool{Field: raw.Field}
		if err := decodeValue(raw, &cmd.Value); err != nil {
			return nil, err
		}
		return cmd, nil
	case OpSetDecimal:
		cmd := SetDecimal{Field: raw.Field}
		if err := decodeValue(raw, &cmd.Value); err != nil {
			return nil, err
		}
		return cmd, nil
	default:
		cmd := SetStringSet{Field: raw.Field}
		if err := decodeValue(raw, &cmd.Values); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}
