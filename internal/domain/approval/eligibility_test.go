package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

func TestCanApproveRule(t *testing.T) {
	r := rule("r", 0, "purchasing", "finance")
	r.DefaultApproverID = "cfo"

	tests := []struct {
		name   string
		rule   *entity.ApprovalRule
		user   string
		groups []string
		want   bool
	}{
		{"member of an approver group", r, "u1", []string{"finance"}, true},
		{"default approver without groups", r, "cfo", nil, true},
		{"unrelated groups", r, "u2", []string{"warehouse"}, false},
		{"no groups", r, "u3", nil, false},
		{"nil rule", nil, "u1", []string{"finance"}, false},
		{"empty user", r, "", []string{"finance"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanApproveRule(tt.rule, tt.user, tt.groups))
			// Same inputs, same answer
			assert.Equal(t, tt.want, CanApproveRule(tt.rule, tt.user, tt.groups))
		})
	}
}

func TestCanCancel(t *testing.T) {
	pending := &entity.ApprovalRequest{RequestedBy: "U1", Status: entity.ApprovalStatusPending}
	approved := &entity.ApprovalRequest{RequestedBy: "U1", Status: entity.ApprovalStatusApproved}

	assert.True(t, CanCancel(pending, "U1"))
	assert.False(t, CanCancel(pending, "U2"))
	assert.False(t, CanCancel(approved, "U1"))
	assert.False(t, CanCancel(nil, "U1"))
}

func TestCanDeleteAndReopen(t *testing.T) {
	req := &entity.ApprovalRequest{RequestedBy: "U1", Status: entity.ApprovalStatusRejected}

	t.Run("no request means no restriction", func(t *testing.T) {
		for _, user := range []string{"U1", "U2", ""} {
			assert.True(t, CanDelete(nil, user))
			assert.True(t, CanReopen(nil, user, false))
		}
	})

	t.Run("requester", func(t *testing.T) {
		assert.True(t, CanDelete(req, "U1"))
		assert.True(t, CanReopen(req, "U1", false))
	})

	t.Run("approver who is not the requester", func(t *testing.T) {
		assert.False(t, CanDelete(req, "U2"))
		assert.True(t, CanReopen(req, "U2", true))
	})

	t.Run("bystander", func(t *testing.T) {
		assert.False(t, CanDelete(req, "U3"))
		assert.False(t, CanReopen(req, "U3", false))
	})
}

func TestEvaluate(t *testing.T) {
	assert.Equal(t, Ungated(), Evaluate(nil, "anyone", false))
	assert.Equal(t, Permissions{CanDelete: true, CanReopen: true}, Evaluate(nil, "anyone", true), "nothing to approve without a request")

	req := &entity.ApprovalRequest{RequestedBy: "U1", Status: entity.ApprovalStatusPending}
	assert.Equal(t, Permissions{CanApprove: false, CanCancel: true, CanDelete: true, CanReopen: true}, Evaluate(req, "U1", false))
	assert.Equal(t, Permissions{CanApprove: true, CanCancel: false, CanDelete: false, CanReopen: true}, Evaluate(req, "U2", true))
}
