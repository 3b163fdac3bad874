package auth

import (
	"context"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
)

// ErrUserNotFound is returned by a UserDirectory when no user matches
var ErrUserNotFound = autherr.ErrUserNotFound

// User is the subset of an account the auth flow needs
type User struct {
	ID           int64
	Email        string
	Nickname     string
	PasswordHash string
	Roles        []string
}

// UserDirectory looks users up in persistent storage
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
}

func (u *User) principal() token.Principal {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return token.Principal{SubjectID: u.ID, Email: u.Email, Roles: roles}
}
