// Package user is the gorm-backed user directory.
package user

import (
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
)

// Model is a row of the users table
type Model struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	Email           string `gorm:"size:255;uniqueIndex;not null"`
	Nickname        string `gorm:"size:100"`
	PasswordHash    string `gorm:"column:password;size:100;not null"`
	ProfileImageURL string `gorm:"size:512"`
	Roles           string `gorm:"size:255"` // comma separated
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Model) TableName() string {
	return "users"
}

func (m *Model) toUser() *auth.User {
	return &auth.User{
		ID:           m.ID,
		Email:        m.Email,
		Nickname:     m.Nickname,
		PasswordHash: m.PasswordHash,
		Roles:        splitRoles(m.Roles),
	}
}

func (m *Model) toProfile() session.Profile {
	return session.Profile{
		SubjectID:       m.ID,
		Email:           m.Email,
		Nickname:        m.Nickname,
		ProfileImageURL: m.ProfileImageURL,
	}
}

func splitRoles(raw string) []string {
	roles := []string{}
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}
