package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/erp-approvals/internal/application/service"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// TransitionBody is the body of POST /api/requests/:id/transition
type TransitionBody struct {
	Status  entity.ApprovalStatus `json:"status" binding:"required"`
	Comment string                `json:"comment"`
}

// CreateRequest handles POST /api/companies/:company/requests.
// It answers 200 with approval_required=false when no rule governs the amount.
func (h *Handlers) CreateRequest(c *gin.Context) {
	var input service.CreateRequestInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.CompanyID = c.Param("company")
	input.RequestedBy = currentUser(c)

	request, err := h.services.Approvals.CreateRequest(c.Request.Context(), input)
	if err != nil {
		h.fail(c, "create request", err)
		return
	}
	if request == nil {
		ok(c, http.StatusOK, gin.H{"approval_required": false})
		return
	}
	ok(c, http.StatusCreated, gin.H{"approval_required": true, "request": request})
}

// CheckEligibility handles GET /api/companies/:company/eligibility?document_type=&amount=[&user_id=]
func (h *Handlers) CheckEligibility(c *gin.Context) {
	amount, err := queryAmount(c)
	if err != nil {
		h.fail(c, "check eligibility", err)
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		userID = currentUser(c)
	}

	allowed, err := h.services.Eligibility.CanApprove(c.Request.Context(), service.RuleContext{
		Amount:       amount,
		DocumentType: queryDocumentType(c),
		CompanyID:    c.Param("company"),
	}, userID)
	if err != nil {
		h.fail(c, "check eligibility", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"user_id": userID, "can_approve": allowed})
}

// Inbox handles GET /api/companies/:company/inbox
func (h *Handlers) Inbox(c *gin.Context) {
	requests, err := h.services.Approvals.ListPendingForApprover(c.Request.Context(), c.Param("company"), currentUser(c))
	if err != nil {
		h.fail(c, "inbox", err)
		return
	}
	ok(c, http.StatusOK, requests)
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	request, err := h.services.Approvals.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get request", err)
		return
	}
	ok(c, http.StatusOK, request)
}

// TransitionRequest handles POST /api/requests/:id/transition
func (h *Handlers) TransitionRequest(c *gin.Context) {
	var body TransitionBody
	if !h.bindJSON(c, &body) {
		return
	}

	request, err := h.services.Approvals.Transition(c.Request.Context(), c.Param("id"), body.Status, currentUser(c), body.Comment)
	if err != nil {
		h.fail(c, "transition request", err)
		return
	}
	ok(c, http.StatusOK, request)
}

// RequestHistory handles GET /api/requests/:id/history
func (h *Handlers) RequestHistory(c *gin.Context) {
	history, err := h.services.Approvals.ListHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "request history", err)
		return
	}
	ok(c, http.StatusOK, history)
}

// RequestNotifications handles GET /api/requests/:id/notifications
func (h *Handlers) RequestNotifications(c *gin.Context) {
	if _, err := h.services.Approvals.GetRequest(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "request notifications", err)
		return
	}

	notifications, err := h.services.Notifications.ListForRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "request notifications", err)
		return
	}
	ok(c, http.StatusOK, notifications)
}

// RequestPermissions handles GET /api/requests/:id/permissions
func (h *Handlers) RequestPermissions(c *gin.Context) {
	request, err := h.services.Approvals.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "request permissions", err)
		return
	}

	perms, err := h.services.Eligibility.EvaluateRequest(c.Request.Context(), request, currentUser(c))
	if err != nil {
		h.fail(c, "request permissions", err)
		return
	}
	ok(c, http.StatusOK, perms)
}
