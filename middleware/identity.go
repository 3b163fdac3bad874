package middleware

import (
	"context"
	"strings"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin.Context key of the authenticated Identity
const IdentityKey = "auth_identity"

const bearerPrefix = "Bearer "

// Identity is the caller attached to an authenticated request
type Identity struct {
	SubjectID int64
	Email     string
	Roles     []string
	// AccessToken is the credential the request was authenticated with
	AccessToken string
}

// HasRole reports whether role was granted
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func identityFromClaims(claims *token.Claims, access string) *Identity {
	p := claims.Principal()
	return &Identity{
		SubjectID:   p.SubjectID,
		Email:       p.Email,
		Roles:       p.Roles,
		AccessToken: access,
	}
}

type identityCtxKey struct{}

// WithIdentity returns ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFrom returns the identity stored in ctx by Authenticate
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*Identity)
	return id, ok && id != nil
}

// GetIdentity returns the identity attached to c
func GetIdentity(c *gin.Context) (*Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

func setIdentity(c *gin.Context, id *Identity) {
	c.Set(IdentityKey, id)
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
}

// RequireIdentity rejects anonymous requests with 401.
// Mount it after Authenticate on protected routes.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			httpx.Abort(c, autherr.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" header value.
// ok is false when the header is absent, uses another scheme, or carries an empty token.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(bearerPrefix):])
	return tok, tok != ""
}
