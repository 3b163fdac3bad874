package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func parseContext(method, target, body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c
}

func TestParse_JSONBody(t *testing.T) {
	c := parseContext(http.MethodPost, "/api/auth/login", `{"email":"neo@example.com","password":"there-is-no-spoon"}`)

	var req credentialsRequest
	require.NoError(t, Parse(c, &req))
	assert.Equal(t, "neo@example.com", req.Email)
	assert.Equal(t, "there-is-no-spoon", req.Password)
}

func TestParse_EmptyBodyIsNotAnError(t *testing.T) {
	c := parseContext(http.MethodPost, "/api/auth/login", "")

	var req credentialsRequest
	require.NoError(t, Parse(c, &req))
	assert.Empty(t, req.Email)
}

func TestParse_MalformedJSON(t *testing.T) {
	c := parseContext(http.MethodPost, "/api/auth/login", `{"email":`)

	var req credentialsRequest
	assert.Error(t, Parse(c, &req))
}

func TestParse_QueryAndURI(t *testing.T) {
	type sessionQuery struct {
		SubjectID int64  `uri:"id"`
		Reason    string `form:"reason"`
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	var req sessionQuery
	var parseErr error
	engine.POST("/api/users/:id/sessions/revoke", func(c *gin.Context) {
		parseErr = Parse(c, &req)
		c.Status(http.StatusNoContent)
	})

	engine.ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/users/42/sessions/revoke?reason=compromised", nil))

	require.NoError(t, parseErr)
	assert.Equal(t, int64(42), req.SubjectID)
	assert.Equal(t, "compromised", req.Reason)
}
