// Package http exposes the admin API over gin.
// Handlers translate requests into engine and service calls and nothing more.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	appwf "github.com/garyjia/assignment-fulfillment/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RequestIDHeader carries the id that ties access log lines to a client request
const RequestIDHeader = "X-Request-ID"

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int // 0 picks a free port
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64 // whole multipart request body
	MaxFileSize     int64 // each uploaded file; 0 disables
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  200 << 20,
		MaxFileSize:     50 << 20,
	}
}

// Services groups the application layer the handlers call into
type Services struct {
	Engine      appwf.FulfillmentEngine
	Assignments service.AssignmentService
	Payments    service.PaymentService
	Reports     service.ReportService
	// Health reports on the running components; nil reports the process as up
	Health func() HealthReport
}

// HealthReport is a component health snapshot serialized under "checks"
type HealthReport interface {
	Healthy() bool
}

// Server serves the admin API
type Server struct {
	config   ServerConfig
	router   *gin.Engine
	services Services
	logger   Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
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

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), requestID(), s.accessLog())
}

// requestID echoes the caller's X-Request-ID or assigns a fresh one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// accessLog writes one line per request; server errors go to the error level
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request failed", fields...)
			return
		}
		s.logger.Info("HTTP request", fields...)
	}
}

func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.logger)
	handlers.maxUploadBytes = s.config.MaxUploadBytes
	handlers.maxFileSize = s.config.MaxFileSize

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		assignments := api.Group("/assignments")
		assignments.POST("", handlers.Assign)
		assignments.GET("", handlers.ListAssignments)
		assignments.GET("/:id", handlers.GetAssignment)
		assignments.GET("/:id/files", handlers.ListFiles)
		assignments.GET("/:id/files/:index", handlers.DownloadFile)
		assignments.GET("/:id/history", handlers.History)
		assignments.GET("/:id/notifications", handlers.Notifications)
		assignments.GET("/:id/payments", handlers.Payments)
		assignments.POST("/:id/actions", handlers.ExecuteAction)
		assignments.POST("/:id/files", handlers.UploadFiles)
		assignments.POST("/:id/payments/:kind/confirm", handlers.ConfirmPayment)

		api.GET("/reports/assignments", handlers.ExportReport)
	}
}

// Start listens on the configured address and serves until ctx is cancelled
// or the listener fails. Cancellation triggers a graceful Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Lock()
	s.listener, s.httpServer = ln, srv
	s.mu.Unlock()
	s.logger.Info("Starting HTTP server", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop drains in-flight requests for at most ShutdownTimeout
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
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

// Address returns the bound address once listening, the configured one before
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
