// Package server is the HTTP presentation shell for kiosks. It opens a
// selection session per customer configuration, drives it from JSON
// requests, and writes confirmed lines to the cart.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/tableside/internal/metrics"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

// DefaultSessionTTL is how long an untouched session stays open.
const DefaultSessionTTL = 30 * time.Minute

// Options configures a Server. Zero values pick defaults.
type Options struct {
	Metrics    *metrics.Collector
	Logger     *slog.Logger
	SessionTTL time.Duration
	// AllowOrigins enables CORS for browser kiosks served from these
	// origins. Empty disables CORS.
	AllowOrigins []string
}

// Server routes kiosk requests to the store and the session registry.
type Server struct {
	router   *gin.Engine
	store    types.Store
	sessions *sessionRegistry
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// New builds a Server over an attached store.
func New(store types.Store, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	s := &Server{
		router:   gin.New(),
		store:    store,
		sessions: newSessionRegistry(opts.SessionTTL, opts.Metrics),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	s.router.Use(gin.Recovery(), requestLogger(s.logger))
	if len(opts.AllowOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.count()})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/items", s.handleListItems)
		api.GET("/items/:id", s.handleGetItem)

		api.POST("/sessions", s.handleOpenSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.POST("/sessions/:id/select", s.handleSelect)
		api.POST("/sessions/:id/forward", s.handleForward)
		api.POST("/sessions/:id/back", s.handleBack)
		api.POST("/sessions/:id/root", s.handleRoot)
		api.POST("/sessions/:id/confirm", s.handleConfirm)
		api.DELETE("/sessions/:id", s.handleCancel)

		api.GET("/cart", s.handleListCart)
		api.POST("/cart", s.handleAddPlain)
		api.DELETE("/cart", s.handleClearCart)
		api.DELETE("/cart/:lineId", s.handleRemoveLine)
	}
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves on addr until ctx is cancelled, sweeping idle sessions once a
// minute, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ticker.C:
			if n := s.sessions.sweep(); n > 0 {
				s.logger.Info("expired idle sessions", "count", n)
			}
		case <-ctx.Done():
			s.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// requestLogger logs one structured line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
