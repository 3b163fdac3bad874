package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	for _, header := range []string{"", "Bearer ", "bearer abc", "Basic abc", "Bearerabc"} {
		_, ok := BearerToken(header)
		assert.False(t, ok, header)
	}
}

func TestIdentity_Context(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	id := &Identity{SubjectID: 5, Roles: []string{"ADMIN"}}
	got, ok := IdentityFrom(WithIdentity(context.Background(), id))
	assert.True(t, ok)
	assert.Same(t, id, got)
	assert.True(t, got.HasRole("ADMIN"))
	assert.False(t, got.HasRole("USER"))
}

func TestGetIdentity_WrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(IdentityKey, "not an identity")

	_, ok := GetIdentity(c)
	assert.False(t, ok)
}
