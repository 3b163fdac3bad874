package api

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72)),
	)
}

// LogoutRequest is the body of POST /api/auth/logout
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *LogoutRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type UserResponse struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	Nickname string   `json:"nickname"`
	Roles    []string `json:"roles"`
}

type LoginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         UserResponse `json:"user"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type ConnectionTestResponse struct {
	Time time.Time `json:"time"`
}

type MeResponse struct {
	ID              int64    `json:"id"`
	Email           string   `json:"email"`
	Roles           []string `json:"roles"`
	Nickname        string   `json:"nickname"`
	ProfileImageURL string   `json:"profileImageUrl"`
}

// ChangePasswordRequest is the body of PUT /api/users/me/password
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OldPassword, validation.Required, validation.Length(1, 72)),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(1, 72)),
	)
}

// ProfileUpdateRequest is the body of PUT /api/users/me/profile. Absent fields keep their value.
type ProfileUpdateRequest struct {
	Nickname        *string `json:"nickname"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

func (r *ProfileUpdateRequest) Validate() error {
	if r.Nickname != nil {
		trimmed := strings.TrimSpace(*r.Nickname)
		r.Nickname = &trimmed
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Nickname, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.ProfileImageURL, validation.Length(0, 512), is.URL),
	)
}

type ProfileResponse struct {
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profileImageUrl"`
}
