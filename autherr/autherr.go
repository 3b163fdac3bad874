// Package autherr defines the tagged failures of the authentication subsystem.
package autherr

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-tokenauth/errcode"
)

const moduleCode = 20

// Kind tags a failure so callers can switch on it without string matching
type Kind string

const (
	KindNone               Kind = ""
	KindInvalidCredential  Kind = "invalid_credential"
	KindExpiredCredential  Kind = "expired_credential"
	KindBlacklisted        Kind = "blacklisted_credential"
	KindTokenMismatch      Kind = "token_mismatch"
	KindUserNotFound       Kind = "user_not_found"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindMissingCredential  Kind = "missing_credential"
	KindValidation         Kind = "validation"
	KindUnauthenticated    Kind = "unauthenticated"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

var (
	ErrInvalidCredential     = errcode.Register(errcode.New(moduleCode, 1, "auth", "invalid JWT token", http.StatusUnauthorized))
	ErrExpiredCredential     = errcode.Register(errcode.New(moduleCode, 2, "auth", "JWT token has expired", http.StatusUnauthorized))
	ErrBlacklistedCredential = errcode.Register(errcode.New(moduleCode, 3, "auth", "token is blacklisted", http.StatusUnauthorized))
	ErrTokenMismatch         = errcode.Register(errcode.New(moduleCode, 4, "auth", "invalid token", http.StatusUnauthorized))
	ErrUserNotFound          = errcode.Register(errcode.New(moduleCode, 5, "auth", "user not found", http.StatusNotFound))
	ErrInvalidCredentials    = errcode.Register(errcode.New(moduleCode, 6, "auth", "invalid email or password", http.StatusUnauthorized))
	ErrStoreUnavailable      = errcode.Register(errcode.New(moduleCode, 7, "auth", "internal server error", http.StatusInternalServerError))
	ErrMissingCredential     = errcode.Register(errcode.New(moduleCode, 8, "auth", "refresh token is missing", http.StatusUnauthorized))
	ErrValidation            = errcode.Register(errcode.New(moduleCode, 9, "auth", "invalid request", http.StatusBadRequest))
	ErrInternal              = errcode.Register(errcode.New(moduleCode, 10, "auth", "internal server error", http.StatusInternalServerError))
	ErrUnauthenticated       = errcode.Register(errcode.New(moduleCode, 11, "auth", "authentication required", http.StatusUnauthorized))
	ErrRateLimited           = errcode.Register(errcode.New(moduleCode, 12, "auth", "too many requests", http.StatusTooManyRequests))
)

var kinds = []struct {
	err  *errcode.LayeredError
	kind Kind
}{
	{ErrInvalidCredential, KindInvalidCredential},
	{ErrExpiredCredential, KindExpiredCredential},
	{ErrBlacklistedCredential, KindBlacklisted},
	{ErrTokenMismatch, KindTokenMismatch},
	{ErrUserNotFound, KindUserNotFound},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrMissingCredential, KindMissingCredential},
	{ErrValidation, KindValidation},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrRateLimited, KindRateLimited},
	{ErrInternal, KindInternal},
}

// KindOf returns the tag of err. Untagged non-nil errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsUnauthorized reports whether err should reject the caller with 401
func IsUnauthorized(err error) bool {
	switch KindOf(err) {
	case KindInvalidCredential, KindExpiredCredential, KindBlacklisted,
		KindTokenMismatch, KindInvalidCredentials, KindMissingCredential, KindUnauthenticated:
		return true
	}
	return false
}
