package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedRequestLog(t *testing.T, skip ...string) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	router := gin.New()
	router.Use(RequestLogWithConfig(RequestLogConfig{
		SkipPaths: skip,
		Logger:    logger.NewFromZap(zap.New(core), "http", nil),
	}))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/denied", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return router, logs
}

func TestRequestLog_LevelByStatus(t *testing.T) {
	router, logs := observedRequestLog(t)

	for _, path := range []string{"/ok", "/denied", "/broken"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(401), entries[1].ContextMap()["status"])
}

func TestRequestLog_SkipPaths(t *testing.T) {
	router, logs := observedRequestLog(t, "/ok")

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Zero(t, logs.Len())
}

func TestRequestLog_NoAuthorizationHeader(t *testing.T) {
	router, logs := observedRequestLog(t)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	for k, v := range logs.All()[0].ContextMap() {
		assert.NotContains(t, fmt.Sprint(v), "secret-token", k)
	}
}
