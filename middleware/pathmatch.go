package middleware

import (
	"path"
	"strings"
)

// DefaultPublicPaths are reachable without a credential
var DefaultPublicPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/test",
	"/api/health/**",
	"/api/user/signup",
	"/api/auth/refresh",
	"/api/auth/logout",
	"/v3/api-docs/**",
	"/swagger-ui.html",
	"/swagger-ui/**",
}

// PathMatcher decides whether a request path is on the public allowlist.
//
// Pattern forms:
//
//	/api/health/**   the base path and everything below it
//	/files/*.png     path.Match glob, one segment per "*"
//	/api/auth/login  exact path or any path below it
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher normalizes patterns; blank entries are dropped
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Patterns returns the effective allowlist
func (m *PathMatcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Match reports whether p is public
func (m *PathMatcher) Match(p string) bool {
	for _, pattern := range m.patterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, p string) bool {
	if base, ok := strings.CutSuffix(pattern, "/**"); ok {
		return p == base || strings.HasPrefix(p, base+"/")
	}
	if strings.Contains(pattern, "*") {
		ok, err := path.Match(pattern, p)
		return err == nil && ok
	}
	base := strings.TrimSuffix(pattern, "/")
	return p == base || strings.HasPrefix(p, base+"/")
}

// ParsePublicPaths splits a comma separated allowlist, as read from AUTH_PUBLIC_PATHS
func ParsePublicPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
