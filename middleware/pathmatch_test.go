package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_Defaults(t *testing.T) {
	m := NewPathMatcher(DefaultPublicPaths)

	public := []string{
		"/api/auth/login",
		"/api/auth/refresh",
		"/api/auth/logout",
		"/api/auth/test",
		"/api/health",
		"/api/health/readiness",
		"/v3/api-docs",
		"/v3/api-docs/swagger-config",
		"/swagger-ui.html",
		"/swagger-ui/index.html",
	}
	for _, p := range public {
		assert.True(t, m.Match(p), p)
	}

	protected := []string{
		"/api/users/me",
		"/api/auth/loginx",
		"/api/healthz",
		"/swagger-uiX",
		"/",
	}
	for _, p := range protected {
		assert.False(t, m.Match(p), p)
	}
}

func TestPathMatcher_Glob(t *testing.T) {
	m := NewPathMatcher([]string{"/static/*.css"})

	assert.True(t, m.Match("/static/site.css"))
	assert.False(t, m.Match("/static/nested/site.css"))
}

func TestPathMatcher_PlainPrefixIsSegmentAware(t *testing.T) {
	m := NewPathMatcher([]string{"/public/"})

	assert.True(t, m.Match("/public"))
	assert.True(t, m.Match("/public/file"))
	assert.False(t, m.Match("/publicity"))
}

func TestParsePublicPaths(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b/**"}, ParsePublicPaths(" /a, ,/b/** ,"))
	assert.Nil(t, ParsePublicPaths(""))

	m := NewPathMatcher([]string{" ", "/x"})
	assert.Equal(t, []string{"/x"}, m.Patterns())
}
