// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package api serves the profile repository over a local HTTP API for
// presentation layers that are not written in Go.
package api // import "github.com/TomPlanche/PassGuard/internal/api"

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// HealthHandler serves the health check endpoint.
type HealthHandler struct {
	repo Profiles
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(repo Profiles) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Healthz reports whether the profile collection can be read.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if _, err := h.repo.GetProfiles(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RequestLogger logs one line per request.
func RequestLogger(l *clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// RegisterRoutes registers the profile, health and metrics routes on r.
// metrics may be nil.
func RegisterRoutes(r *gin.Engine, repo Profiles, metrics http.Handler) {
	if r == nil || repo == nil {
		return
	}

	health := NewHealthHandler(repo)
	r.GET("/healthz", health.Healthz)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	profiles := NewProfileHandler(repo)
	g := r.Group("/api/profiles")
	g.GET("", profiles.List)
	g.POST("", profiles.Create)
	g.DELETE("", profiles.DeleteAll)
	g.GET("/export", profiles.Export)
	g.POST("/import", profiles.Import)
	g.POST("/defaults", profiles.Seed)
	g.GET("/stream", profiles.Stream)
	g.GET("/:id", profiles.Get)
	g.PUT("/:id", profiles.Update)
	g.DELETE("/:id", profiles.Delete)
}

// NewRouter builds the gin engine serving repo.
func NewRouter(repo Profiles, metrics http.Handler, l *clog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(l))
	RegisterRoutes(r, repo, metrics)
	return r
}

// Serve runs handler on addr until ctx ends, then shuts down gracefully.
// Request contexts derive from ctx so open streams end with it.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
