package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AddMemberBody is the body of POST /api/companies/:company/groups/:group/members
type AddMemberBody struct {
	UserID string `json:"userId" binding:"required"`
}

// ListMembers handles GET /api/companies/:company/groups/:group/members
func (h *Handlers) ListMembers(c *gin.Context) {
	members, err := h.services.Memberships.ListMembers(c.Request.Context(), c.Param("company"), c.Param("group"))
	if err != nil {
		h.fail(c, "list members", err)
		return
	}
	if members == nil {
		members = []string{}
	}
	ok(c, http.StatusOK, members)
}

// AddMember handles POST /api/companies/:company/groups/:group/members
func (h *Handlers) AddMember(c *gin.Context) {
	var body AddMemberBody
	if !h.bindJSON(c, &body) {
		return
	}

	if err := h.services.Memberships.AddMember(c.Request.Context(), c.Param("company"), c.Param("group"), body.UserID); err != nil {
		h.fail(c, "add member", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/companies/:company/groups/:group/members/:user
func (h *Handlers) RemoveMember(c *gin.Context) {
	if err := h.services.Memberships.RemoveMember(c.Request.Context(), c.Param("company"), c.Param("group"), c.Param("user")); err != nil {
		h.fail(c, "remove member", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UserGroups handles GET /api/companies/:company/users/:user/groups
func (h *Handlers) UserGroups(c *gin.Context) {
	groups, err := h.services.Memberships.GroupsForUser(c.Request.Context(), c.Param("company"), c.Param("user"))
	if err != nil {
		h.fail(c, "user groups", err)
		return
	}
	if groups == nil {
		groups = []string{}
	}
	ok(c, http.StatusOK, groups)
}
