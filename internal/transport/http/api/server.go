package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"payguard/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server serves the recommendation and execution API.
type Server struct {
	addr   string
	router *gin.Engine
	events *eventHub
}

// ServerConfig describes the HTTP server's dependencies.
type ServerConfig struct {
	Addr            string
	Recommender     Recommender
	Executions      ExecutionManager
	RateLimitPerMin int
	Burst           int
}

// NewServer builds the gin engine and mounts /api.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Recommender == nil || cfg.Executions == nil {
		return nil, errors.New("api http server requires a recommender and an execution manager")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := newRouter(cfg.Recommender, cfg.Executions, newClientLimiter(cfg.RateLimitPerMin, cfg.Burst))
	api.Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router, events: api.events}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("HTTP API listening on %s", s.addr)

	select {
	case <-ctx.Done():
		s.events.close()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
