// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/erp-approvals/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Version:         "1.0.0",
	}
}

// Services bundles the application services exposed over HTTP
type Services struct {
	Rules         service.RuleService
	Approvals     service.ApprovalService
	Documents     service.DocumentService
	Eligibility   service.EligibilityService
	Memberships   service.MembershipService
	Notifications service.NotificationService

	// Health reports whether the backing stores are reachable; nil means always healthy
	Health func(ctx context.Context) error
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"user_id", c.GetString(userKey),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.Version, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api", requireUser())

	company := api.Group("/companies/:company")
	{
		company.GET("/rules", h.ListRules)
		company.POST("/rules", h.CreateRule)
		company.GET("/rules/resolve", h.ResolveRule)
		company.GET("/rules/export", h.ExportRules)

		company.GET("/eligibility", h.CheckEligibility)
		company.POST("/requests", h.CreateRequest)
		company.GET("/inbox", h.Inbox)

		company.GET("/documents", h.ListDocuments)
		company.POST("/documents", h.CreateDocument)

		company.GET("/groups/:group/members", h.ListMembers)
		company.POST("/groups/:group/members", h.AddMember)
		company.DELETE("/groups/:group/members/:user", h.RemoveMember)
		company.GET("/users/:user/groups", h.UserGroups)
	}

	rules := api.Group("/rules/:id")
	{
		rules.GET("", h.GetRule)
		rules.PATCH("", h.UpdateRule)
		rules.DELETE("", h.DeleteRule)
	}

	docs := api.Group("/documents/:id")
	{
		docs.GET("", h.GetDocument)
		docs.PATCH("", h.UpdateDocument)
		docs.DELETE("", h.DeleteDocument)
		docs.POST("/submit", h.SubmitDocument)
		docs.POST("/approve", h.ApproveDocument)
		docs.POST("/reject", h.RejectDocument)
		docs.POST("/cancel", h.CancelDocument)
		docs.POST("/reopen", h.ReopenDocument)
		docs.POST("/advance", h.AdvanceDocument)
		docs.GET("/permissions", h.DocumentPermissions)
		docs.GET("/history", h.DocumentHistory)
		docs.GET("/request", h.DocumentRequest)
	}

	requests := api.Group("/requests/:id")
	{
		requests.GET("", h.GetRequest)
		requests.POST("/transition", h.TransitionRequest)
		requests.GET("/history", h.RequestHistory)
		requests.GET("/notifications", h.RequestNotifications)
		requests.GET("/permissions", h.RequestPermissions)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
