package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is what a credential is issued for
type Principal struct {
	SubjectID int64
	Email     string
	Roles     []string
}

// Issued is a freshly signed credential
type Issued struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the verified content of a credential
type Claims struct {
	SubjectID int64
	Email     string
	Roles     []string
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal returns the identity the claims were issued for
func (c *Claims) Principal() Principal {
	roles := make([]string, len(c.Roles))
	copy(roles, c.Roles)
	return Principal{SubjectID: c.SubjectID, Email: c.Email, Roles: roles}
}

// Remaining returns the lifetime left at now, never negative
func (c *Claims) Remaining(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RevocationTTL is how long a blacklist entry made at now must live to cover
// every instant Verify still accepts the credential (exp plus ClockSkew).
// It is rounded up to whole milliseconds, the store's TTL resolution.
func (c *Claims) RevocationTTL(now time.Time) time.Duration {
	d := c.ExpiresAt.Add(ClockSkew).Sub(now)
	if d <= 0 {
		return 0
	}
	if rem := d % time.Millisecond; rem != 0 {
		d += time.Millisecond - rem
	}
	return d
}

// wireClaims is the signed JSON payload
type wireClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}
