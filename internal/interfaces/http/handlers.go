package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

const (
	// UserHeader carries the id of the acting user
	UserHeader = "X-User-ID"

	userKey = "user_id"

	maxBodyBytes = 1 << 20
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	version  string
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, version string, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		version:  version,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// CommentRequest is the body of approve, reject, cancel and reopen calls
type CommentRequest struct {
	Comment string `json:"comment"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}

	if h.services.Health != nil {
		if err := h.services.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// requireUser rejects API calls that do not name the acting user
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + UserHeader + " header",
			})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}

// statusFor maps the approval error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, approval.ErrAmbiguousRule):
		return http.StatusConflict
	case errors.Is(err, approval.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, approval.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, approval.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Internal details stay in the log.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}

	var validationErr *approval.ValidationError
	if errors.As(err, &validationErr) {
		resp.Field = validationErr.Field
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "error", err, "path", c.Request.URL.Path)
		resp.Error = "internal error"
	} else {
		h.logger.Info("Request refused", "op", op, "status", status, "error", err.Error())
	}

	c.JSON(status, resp)
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// bindJSON decodes the request body and answers 400 on failure
func (h *Handlers) bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		h.fail(c, "bind", approval.NewValidationError("", "invalid request body: %v", err))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body
func (h *Handlers) bindOptionalJSON(c *gin.Context, target interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, target)
}

func (h *Handlers) readBody(c *gin.Context) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.fail(c, "read body", approval.NewValidationError("", "unreadable request body: %v", err))
		return nil, false
	}
	return data, true
}

func queryDocumentType(c *gin.Context) entity.DocumentType {
	return entity.DocumentType(strings.TrimSpace(c.Query("document_type")))
}

func queryAmount(c *gin.Context) (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query("amount"))
	if raw == "" {
		return decimal.Zero, approval.NewValidationError("amount", "is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, approval.NewValidationError("amount", "%q is not a number", raw)
	}
	return amount, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, approval.NewValidationError(key, "must be a non-negative integer")
	}
	return v, nil
}
