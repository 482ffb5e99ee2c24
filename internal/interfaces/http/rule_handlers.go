package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/erp-approvals/internal/application/service"
	"github.com/garyjia/erp-approvals/internal/domain/form"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ListRules handles GET /api/companies/:company/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.services.Rules.ListRules(c.Request.Context(), c.Param("company"), queryDocumentType(c))
	if err != nil {
		h.fail(c, "list rules", err)
		return
	}
	ok(c, http.StatusOK, rules)
}

// CreateRule handles POST /api/companies/:company/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var input service.CreateRuleInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.CompanyID = c.Param("company")
	input.CreatedBy = currentUser(c)

	rule, err := h.services.Rules.CreateRule(c.Request.Context(), input)
	if err != nil {
		h.fail(c, "create rule", err)
		return
	}
	ok(c, http.StatusCreated, rule)
}

// ResolveRule handles GET /api/companies/:company/rules/resolve?document_type=&amount=
func (h *Handlers) ResolveRule(c *gin.Context) {
	amount, err := queryAmount(c)
	if err != nil {
		h.fail(c, "resolve rule", err)
		return
	}

	rule, err := h.services.Rules.Resolve(c.Request.Context(), c.Param("company"), queryDocumentType(c), amount)
	if err != nil {
		h.fail(c, "resolve rule", err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"approval_required": rule != nil,
		"rule":              rule,
	})
}

// ExportRules handles GET /api/companies/:company/rules/export
func (h *Handlers) ExportRules(c *gin.Context) {
	company := c.Param("company")

	var buf bytes.Buffer
	if err := h.services.Rules.ExportRules(c.Request.Context(), company, &buf); err != nil {
		h.fail(c, "export rules", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="approval-rules-%s.xlsx"`, company))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetRule handles GET /api/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.services.Rules.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get rule", err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// UpdateRule handles PATCH /api/rules/:id with a JSON array of form commands
func (h *Handlers) UpdateRule(c *gin.Context) {
	data, read := h.readBody(c)
	if !read {
		return
	}

	cmds, err := form.Decode(data, form.RuleSchema)
	if err != nil {
		h.fail(c, "update rule", err)
		return
	}

	rule, err := h.services.Rules.UpdateRule(c.Request.Context(), c.Param("id"), currentUser(c), cmds)
	if err != nil {
		h.fail(c, "update rule", err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.services.Rules.DeleteRule(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		h.fail(c, "delete rule", err)
		return
	}
	c.Status(http.StatusNoContent)
}
