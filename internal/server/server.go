// Package server exposes the dataset and query operations over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vegasq/insightq/internal/config"
	"github.com/vegasq/insightq/internal/metrics"
	"github.com/vegasq/insightq/internal/service"
)

// Server routes HTTP requests to a Service
type Server struct {
	svc    *service.Service
	cfg    config.HTTPConfig
	logger log.Logger
	router *gin.Engine
}

// New builds the router for svc
func New(svc *service.Service, cfg config.HTTPConfig, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		router: gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(s.logger))
	r.Use(cors(s.cfg.CORSOrigin))
	if s.cfg.RateLimit > 0 {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateBurst))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.PUT("/dataset/:id/:kind", s.addDataset)
	r.DELETE("/dataset/:id", s.removeDataset)
	r.POST("/query", s.performQuery)
	r.GET("/datasets", s.listDatasets)
	r.GET("/echo/:msg", s.echo)
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully within the configured timeout
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	level.Info(s.logger).Log("msg", "shutting down server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	level.Info(s.logger).Log("msg", "server stopped")
	return nil
}
