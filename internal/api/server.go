// Package api exposes the ledger, importer and reclassifier over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Veraticus/spice-sorter/internal/importer"
	"github.com/Veraticus/spice-sorter/internal/ledger"
	"github.com/Veraticus/spice-sorter/internal/reclassify"
	"github.com/Veraticus/spice-sorter/internal/service"
)

// maxUploadSize bounds statement uploads.
const maxUploadSize = 32 << 20

const shutdownTimeout = 10 * time.Second

// Server holds the HTTP handlers.
type Server struct {
	ledger       *ledger.Service
	importer     *importer.Importer
	reclassifier *reclassify.Service
	store        service.Store
	corsOrigins  []string
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins. Without it every origin is allowed.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// NewServer creates a server. store supplies custom categories and merchant
// overrides and must be the store behind l.
func NewServer(l *ledger.Service, im *importer.Importer, rc *reclassify.Service, store service.Store, opts ...Option) *Server {
	s := &Server{
		ledger:       l,
		importer:     im,
		reclassifier: rc,
		store:        store,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(s.corsConfig()))
	router.MaxMultipartMemory = maxUploadSize

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		api.GET("/transactions", s.listTransactions)
		api.POST("/transactions", s.createTransaction)
		api.DELETE("/transactions", s.deleteAllTransactions)
		api.POST("/transactions/import", s.importStatement)
		api.PUT("/transactions/:id", s.updateTransaction)
		api.DELETE("/transactions/:id", s.deleteTransaction)

		api.GET("/merchant_overrides", s.listOverrides)

		api.GET("/categories", s.listCategories)
		api.POST("/categories", s.addCategory)
		api.DELETE("/categories/:name", s.removeCategory)

		api.POST("/reclassify/dry-run", s.reclassifyDryRun)
		api.POST("/reclassify/apply", s.reclassifyApply)
	}

	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.corsOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.corsOrigins
	}
	return cfg
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	slog.Info("API stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
