package approval

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("amount", "must not be negative"), ErrValidation},
		{"not authorized", &NotAuthorizedError{Action: "approve", UserID: "u1"}, ErrNotAuthorized},
		{"invalid transition", &InvalidTransitionError{From: "Approved", To: "Rejected"}, ErrInvalidTransition},
		{"persistence", &PersistenceError{Op: "insert request", Err: sql.ErrConnDone}, ErrPersistence},
		{"not found", &NotFoundError{Resource: "rule", ID: "r1"}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.True(t, IsClassified(wrapped))
		})
	}
}

func TestWrapPersistence(t *testing.T) {
	assert.NoError(t, WrapPersistence("op", nil))

	raw := errors.New("disk I/O error")
	err := WrapPersistence("update request", raw)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, raw))
	assert.Contains(t, err.Error(), "update request")

	notFound := &NotFoundError{Resource: "request", ID: "x"}
	assert.Same(t, notFound, WrapPersistence("load", notFound).(*NotFoundError))
}

func TestValidationError_Message(t *testing.T) {
	assert.Equal(t, "amount: must not be negative", NewValidationError("amount", "must not be negative").Error())
	assert.Equal(t, "bad input", (&ValidationError{Message: "bad input"}).Error())
}
