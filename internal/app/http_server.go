package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"timeledger/internal/domain"
	"timeledger/internal/usecase"
)

// HTTPServer returns a configured http.Server that exposes endpoints to trigger sweeps.
// Call ListenAndServe on the returned server in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: a.Router()}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

// Router builds the gin engine serving the trigger endpoints.
func (a *App) Router() *gin.Engine {
	return newRouter(a.log, a.engine, a.tenants)
}

func newRouter(log *slog.Logger, e *Engine, tenants []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), loggingMiddleware(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// POST /sweep?tenant=a,b&timeout=30s
	// Without tenant the configured tenants are swept.
	r.POST("/sweep", func(c *gin.Context) {
		ids := tenants
		if q := c.Query("tenant"); q != "" {
			ids = strings.Split(q, ",")
		}
		ctx := c.Request.Context()
		if tStr := c.Query("timeout"); tStr != "" {
			if d, err := time.ParseDuration(tStr); err == nil && d > 0 {
				var cancel func()
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
		}
		reports, err := e.Sweep.Run(ctx, ids)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "tenants": reports})
	})

	r.GET("/tenants/:tenant/hierarchy", func(c *gin.Context) {
		report, err := e.Codes.ValidateHierarchy(c.Request.Context(), c.Param("tenant"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	r.GET("/tenants/:tenant/projects/:id/budget", func(c *gin.Context) {
		status, err := e.Projects.BudgetReport(c.Request.Context(), c.Param("tenant"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	return r
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"status": "error", "error": err.Error()})
}

// statusFor maps engine error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrSweepRunning),
		errors.Is(err, domain.ErrStaleWrite),
		errors.Is(err, domain.ErrStateTransition),
		errors.Is(err, domain.ErrImmutable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("remote", c.Request.RemoteAddr),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}
