package sandbox

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"nocs-settlement/internal/config"
	"nocs-settlement/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	SettlePath = "/nocs/v2/settle"
	ReportPath = "/nocs/v2/report"
)

type MetricsRecorder interface {
	middleware.MetricsRecorder
	middleware.VerificationRecorder
}

// NewRouter builds the sandbox engine. metrics and gatherer may be nil.
func NewRouter(verifier middleware.SignatureVerifier, metrics MetricsRecorder, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if metrics != nil {
		engine.Use(middleware.MetricsMiddleware(metrics))
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	handler := NewSettlementHandler(logger)
	nocs := engine.Group("/nocs/v2")
	nocs.Use(middleware.AuthMiddleware(verifier, metrics, logger))
	{
		nocs.POST("/settle", handler.HandleSettle)
		nocs.POST("/report", handler.HandleReport)
	}

	return engine
}

// Server runs the sandbox over HTTP.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// Listen binds the configured address. Port 0 picks a free port.
func Listen(cfg config.SandboxConfig, handler http.Handler, logger *zap.Logger) (*Server, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	return &Server{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr is the bound address, e.g. 127.0.0.1:8090.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// BaseURL is the http URL of the bound address.
func (s *Server) BaseURL() string {
	return "http://" + s.Addr()
}

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	s.logger.Info("sandbox listening", zap.String("address", s.Addr()))
	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("sandbox shutting down")
	return s.server.Shutdown(ctx)
}
