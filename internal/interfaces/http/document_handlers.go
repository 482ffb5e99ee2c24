package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/erp-approvals/internal/application/service"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/form"
	domainwf "github.com/garyjia/erp-approvals/internal/domain/workflow"
)

const defaultPageSize = 50

// AdvanceBody is the body of POST /api/documents/:id/advance
type AdvanceBody struct {
	Trigger domainwf.Trigger `json:"trigger" binding:"required"`
}

type decisionFunc func(ctx context.Context, id, actingUser, comment string) (*entity.Document, error)

// ListDocuments handles GET /api/companies/:company/documents?document_type=&limit=&offset=
func (h *Handlers) ListDocuments(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}

	docs, err := h.services.Documents.ListDocuments(c.Request.Context(), c.Param("company"), queryDocumentType(c), limit, offset)
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}
	ok(c, http.StatusOK, docs)
}

// CreateDocument handles POST /api/companies/:company/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var input service.CreateDocumentInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.CompanyID = c.Param("company")
	input.CreatedBy = currentUser(c)

	doc, err := h.services.Documents.CreateDocument(c.Request.Context(), input)
	if err != nil {
		h.fail(c, "create document", err)
		return
	}
	ok(c, http.StatusCreated, doc)
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, err := h.services.Documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get document", err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// UpdateDocument handles PATCH /api/documents/:id with a JSON array of form commands
func (h *Handlers) UpdateDocument(c *gin.Context) {
	data, read := h.readBody(c)
	if !read {
		return
	}

	cmds, err := form.Decode(data, form.DocumentSchema)
	if err != nil {
		h.fail(c, "update document", err)
		return
	}

	doc, err := h.services.Documents.UpdateDocument(c.Request.Context(), c.Param("id"), currentUser(c), cmds)
	if err != nil {
		h.fail(c, "update document", err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/:id
func (h *Handlers) DeleteDocument(c *gin.Context) {
	if err := h.services.Documents.Delete(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		h.fail(c, "delete document", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitDocument handles POST /api/documents/:id/submit
func (h *Handlers) SubmitDocument(c *gin.Context) {
	doc, err := h.services.Documents.Submit(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.fail(c, "submit document", err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// ApproveDocument handles POST /api/documents/:id/approve
func (h *Handlers) ApproveDocument(c *gin.Context) {
	h.decide(c, "approve document", h.services.Documents.Approve)
}

// RejectDocument handles POST /api/documents/:id/reject
func (h *Handlers) RejectDocument(c *gin.Context) {
	h.decide(c, "reject document", h.services.Documents.Reject)
}

// CancelDocument handles POST /api/documents/:id/cancel
func (h *Handlers) CancelDocument(c *gin.Context) {
	h.decide(c, "cancel document", h.services.Documents.Cancel)
}

// ReopenDocument handles POST /api/documents/:id/reopen
func (h *Handlers) ReopenDocument(c *gin.Context) {
	h.decide(c, "reopen document", h.services.Documents.Reopen)
}

func (h *Handlers) decide(c *gin.Context, op string, fn decisionFunc) {
	var body CommentRequest
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	doc, err := fn(c.Request.Context(), c.Param("id"), currentUser(c), body.Comment)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// AdvanceDocument handles POST /api/documents/:id/advance
func (h *Handlers) AdvanceDocument(c *gin.Context) {
	var body AdvanceBody
	if !h.bindJSON(c, &body) {
		return
	}

	doc, err := h.services.Documents.Advance(c.Request.Context(), c.Param("id"), body.Trigger, currentUser(c))
	if err != nil {
		h.fail(c, "advance document", err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// DocumentPermissions handles GET /api/documents/:id/permissions
func (h *Handlers) DocumentPermissions(c *gin.Context) {
	perms, err := h.services.Documents.Permissions(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.fail(c, "document permissions", err)
		return
	}
	ok(c, http.StatusOK, perms)
}

// DocumentHistory handles GET /api/documents/:id/history
func (h *Handlers) DocumentHistory(c *gin.Context) {
	doc, err := h.services.Documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "document history", err)
		return
	}

	history, err := h.services.Approvals.ListDocumentHistory(c.Request.Context(), doc.Type, doc.ID)
	if err != nil {
		h.fail(c, "document history", err)
		return
	}
	ok(c, http.StatusOK, history)
}

// DocumentRequest handles GET /api/documents/:id/request and returns the latest request, or null
func (h *Handlers) DocumentRequest(c *gin.Context) {
	doc, err := h.services.Documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "document request", err)
		return
	}

	request, err := h.services.Approvals.GetLatestRequest(c.Request.Context(), doc.Type, doc.ID)
	if err != nil {
		h.fail(c, "document request", err)
		return
	}
	ok(c, http.StatusOK, request)
}
