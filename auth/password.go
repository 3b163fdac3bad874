package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort         = errors.New("password is too short")
	ErrPasswordTooLong          = errors.New("password is too long")
	ErrPasswordRequireUppercase = errors.New("password must contain an uppercase letter")
	ErrPasswordRequireLowercase = errors.New("password must contain a lowercase letter")
	ErrPasswordRequireDigit     = errors.New("password must contain a digit")
)

// PasswordService hashes and checks passwords with bcrypt
type PasswordService struct {
	policy     PasswordPolicy
	bcryptCost int
}

func NewPasswordService(cfg PasswordConfig) *PasswordService {
	return &PasswordService{
		policy:     cfg.Policy,
		bcryptCost: cfg.BcryptCost,
	}
}

func (s *PasswordService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. A malformed hash never matches.
func (s *PasswordService) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword applies the policy to a new password
func (s *PasswordService) ValidatePassword(password string) error {
	if len(password) < s.policy.MinLength {
		return ErrPasswordTooShort
	}
	if s.policy.MaxLength > 0 && len(password) > s.policy.MaxLength {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	switch {
	case s.policy.RequireUppercase && !hasUpper:
		return ErrPasswordRequireUppercase
	case s.policy.RequireLowercase && !hasLower:
		return ErrPasswordRequireLowercase
	case s.policy.RequireDigit && !hasDigit:
		return ErrPasswordRequireDigit
	}
	return nil
}
