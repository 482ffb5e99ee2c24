package approval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

var (
	// ErrValidation is matched by every malformed or missing input error
	ErrValidation = errors.New("validation failed")

	// ErrNotAuthorized is matched when an eligibility check refuses an action
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidTransition is matched by illegal status changes
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrPersistence is matched when the underlying store fails
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is matched when a referenced rule, request or document is missing
	ErrNotFound = errors.New("not found")

	// ErrAmbiguousRule is matched when two enabled rules share the selected bound
	ErrAmbiguousRule = errors.New("ambiguous approval rule")
)

// ValidationError reports a malformed or missing input field
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotAuthorizedError reports that userID may not perform action
type NotAuthorizedError struct {
	Action string
	UserID string
	Reason string
}

func (e *NotAuthorizedError) Error() string {
	msg := fmt.Sprintf("user %q is not authorized to %s", e.UserID, e.Action)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *NotAuthorizedError) Is(target error) bool {
	return target == ErrNotAuthorized
}

// InvalidTransitionError reports an illegal state change
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PersistenceError wraps a failed store read or write
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NotFoundError reports a missing rule, request or document
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AmbiguousRuleError reports enabled rules that tie on the selected lower bound
type AmbiguousRuleError struct {
	DocumentType entity.DocumentType
	Bound        decimal.Decimal
	RuleIDs      []string
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("rules %s for %s share lower bound %s",
		strings.Join(e.RuleIDs, ", "), e.DocumentType, e.Bound.String())
}

func (e *AmbiguousRuleError) Is(target error) bool {
	return target == ErrAmbiguousRule || target == ErrValidation
}

// WrapPersistence classifies a store error as PersistenceError.
// Errors that already belong to the taxonomy pass through unchanged.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsClassified reports whether err belongs to the approval error taxonomy
func IsClassified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrNotFound)
}
