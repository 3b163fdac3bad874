package middleware

import (
	"context"
	"net/http"

	"github.com/KOMKZ/go-yogan-tokenauth/health"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/gin-gonic/gin"
)

// HealthReporter runs the dependency checks, satisfied by *health.Aggregator
type HealthReporter interface {
	Check(ctx context.Context) *health.Response
}

// HealthCheckHandler serves the health endpoints
type HealthCheckHandler struct {
	reporter HealthReporter
}

// NewHealthCheckHandler creates the handler
func NewHealthCheckHandler(reporter HealthReporter) *HealthCheckHandler {
	return &HealthCheckHandler{reporter: reporter}
}

// Handle runs every check. Degraded still answers 200.
func (h *HealthCheckHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.reporter.Check(c.Request.Context())

		statusCode := http.StatusOK
		if response.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, httpx.Response{Message: string(response.Status), Data: response})
	}
}

// HandleLiveness answers without touching dependencies
func (h *HealthCheckHandler) HandleLiveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpx.OK(c, "alive", nil)
	}
}

// HandleReadiness answers 200 only when every check is healthy
func (h *HealthCheckHandler) HandleReadiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.reporter.Check(c.Request.Context())

		statusCode := http.StatusOK
		if response.Status != health.StatusHealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, httpx.Response{Message: string(response.Status)})
	}
}

// RegisterHealthRoutes mounts /health, /health/liveness and /health/readiness on router
func RegisterHealthRoutes(router gin.IRouter, reporter HealthReporter) {
	if reporter == nil {
		return
	}

	handler := NewHealthCheckHandler(reporter)

	router.GET("/health", handler.Handle())
	router.GET("/health/liveness", handler.HandleLiveness())
	router.GET("/health/readiness", handler.HandleReadiness())
}
