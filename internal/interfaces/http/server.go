// Package http provides the operations HTTP server: liveness and readiness
// checks. Business operations are not exposed over HTTP.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/landrecords/internal/container"
)

const shutdownGrace = 10 * time.Second

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthSource reports component readiness
type HealthSource interface {
	Ready() bool
	Health(ctx context.Context) *container.HealthStatus
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Version:      "dev",
	}
}

// Server is the ops HTTP server
type Server struct {
	config ServerConfig
	router *gin.Engine
	logger Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

func NewServer(config ServerConfig, health HealthSource, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), accessLog(logger))

	checks := NewHandlers(health, config.Version)
	router.GET("/health", checks.Health)
	router.GET("/ready", checks.Ready)

	return &Server{config: config, router: router, logger: logger}
}

// accessLog logs every request except health checks that answered 200
func accessLog(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if status == http.StatusOK && (route == "/health" || route == "/ready") {
			return
		}
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs on an existing listener. A cancelled ctx shuts the server down
// gracefully and returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Lock()
	s.srv, s.listener = srv, ln
	s.mu.Unlock()

	s.logger.Info("Ops server listening", "address", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("Ops server failed", "error", err)
		return err
	}
}

// Stop drains in-flight requests for up to shutdownGrace
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Ops server shutdown failed", "error", err)
		return err
	}
	s.logger.Info("Ops server stopped")
	return nil
}

// Router exposes the handler for httptest
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address is the configured listen address. Once serving, BoundAddress
// reports the actual one.
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

func (s *Server) BoundAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
