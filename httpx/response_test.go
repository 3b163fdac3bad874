package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	return c, w
}

func TestOK(t *testing.T) {
	c, w := newTestContext()

	OK(c, "login successful", map[string]string{"accessToken": "a"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "login successful", resp.Message)
	assert.NotNil(t, resp.Data)
}

func TestOK_OmitsEmptyData(t *testing.T) {
	c, w := newTestContext()

	OK(c, "logout successful", nil)

	assert.JSONEq(t, `{"message":"logout successful"}`, w.Body.String())
}

func TestNoRouteHandler(t *testing.T) {
	engine := gin.New()
	engine.NoRoute(NoRouteHandler())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "/missing")
}

func TestNoMethodHandler(t *testing.T) {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(NoMethodHandler())
	engine.GET("/only-get", func(c *gin.Context) {})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/only-get", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleError_Nil(t *testing.T) {
	c, w := newTestContext()

	HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}

func TestHandleError_StatusPerKind(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{autherr.ErrInvalidCredential, http.StatusUnauthorized, "invalid JWT token"},
		{autherr.ErrExpiredCredential, http.StatusUnauthorized, "JWT token has expired"},
		{autherr.ErrBlacklistedCredential, http.StatusUnauthorized, "token is blacklisted"},
		{autherr.ErrMissingCredential, http.StatusUnauthorized, "refresh token is missing"},
		{autherr.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{autherr.ErrStoreUnavailable.Wrap(errors.New("i/o timeout")), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			c, w := newTestContext()

			HandleError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, `{"message":"`+tc.message+`"}`, w.Body.String())
		})
	}
}

func TestHandleError_UntaggedHidesCause(t *testing.T) {
	c, w := newTestContext()

	HandleError(c, errors.New("secret detail"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, w.Body.String())
}

func TestAbort_StopsChain(t *testing.T) {
	reached := false
	engine := gin.New()
	engine.Use(func(c *gin.Context) { Abort(c, autherr.ErrInvalidCredential) })
	engine.GET("/x", func(c *gin.Context) { reached = true })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorPolicy_ShouldLog(t *testing.T) {
	quiet := newErrorPolicy(DefaultErrorLoggingConfig())
	assert.False(t, quiet.shouldLog(http.StatusUnauthorized))
	assert.True(t, quiet.shouldLog(http.StatusInternalServerError))

	verbose := newErrorPolicy(ErrorLoggingConfig{Enable: true, IgnoreHTTPStatus: []int{404, 503}})
	assert.True(t, verbose.shouldLog(http.StatusUnauthorized))
	assert.False(t, verbose.shouldLog(http.StatusNotFound))
	assert.False(t, verbose.shouldLog(http.StatusServiceUnavailable))
}

func TestErrorLoggingMiddleware_AttachesPolicy(t *testing.T) {
	engine := gin.New()
	engine.Use(ErrorLoggingMiddleware(ErrorLoggingConfig{Enable: true, LogLevel: "warn"}))

	var got *errorPolicy
	engine.GET("/x", func(c *gin.Context) { got = policyFrom(c) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotNil(t, got)
	assert.True(t, got.logRejections)
	assert.True(t, got.warn)
	assert.False(t, got.withCause)
}

func TestPolicyFrom_Default(t *testing.T) {
	c, _ := newTestContext()

	p := policyFrom(c)

	assert.Same(t, defaultPolicy, p)
	assert.False(t, p.logRejections)
	assert.True(t, p.withCause)
}
