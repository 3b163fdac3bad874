package user

import (
	"context"

	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/profile"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"go.uber.org/zap"
)

// AccountService applies account mutations and keeps the subject's
// sessions and cached profile in step with the users table.
type AccountService struct {
	repo      *Repository
	passwords *auth.PasswordService
	sessions  *auth.Service
	profiles  *profile.Service
	log       *logger.CtxZapLogger
}

func NewAccountService(repo *Repository, passwords *auth.PasswordService, sessions *auth.Service,
	profiles *profile.Service, log *logger.CtxZapLogger) *AccountService {
	if log == nil {
		log = logger.GetLogger("user")
	}
	return &AccountService{repo: repo, passwords: passwords, sessions: sessions, profiles: profiles, log: log}
}

// ChangePassword checks current against the stored hash and stores next.
// Every session of the subject ends, currentAccess included.
func (s *AccountService) ChangePassword(ctx context.Context, subjectID int64, currentAccess, current, next string) error {
	u, err := s.repo.FindByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if !s.passwords.CheckPassword(current, u.PasswordHash) {
		return autherr.ErrInvalidCredentials
	}
	if err := s.passwords.ValidatePassword(next); err != nil {
		return autherr.ErrValidation.WithData("fields", map[string]string{"newPassword": err.Error()})
	}

	hash, err := s.passwords.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, subjectID, hash); err != nil {
		return err
	}

	if err := s.sessions.InvalidateAll(ctx, subjectID, currentAccess); err != nil {
		return err
	}
	s.evict(ctx, "password change", subjectID, s.profiles.EvictAll)
	s.log.InfoCtx(ctx, "password changed", zap.Int64("subject_id", subjectID))
	return nil
}

// UpdateProfile stores the new profile fields and drops the cached snapshot
func (s *AccountService) UpdateProfile(ctx context.Context, subjectID int64, in ProfileUpdate) (session.Profile, error) {
	p, err := s.repo.UpdateProfile(ctx, subjectID, in)
	if err != nil {
		return session.Profile{}, err
	}
	s.evict(ctx, "profile update", subjectID, s.profiles.Evict)
	return p, nil
}

// Withdraw ends every session of the subject, drops its cached data and
// deletes the account.
func (s *AccountService) Withdraw(ctx context.Context, subjectID int64, currentAccess string) error {
	if err := s.sessions.InvalidateAll(ctx, subjectID, currentAccess); err != nil {
		return err
	}
	s.evict(ctx, "withdraw", subjectID, s.profiles.EvictAll)

	if err := s.repo.Delete(ctx, subjectID); err != nil {
		return err
	}
	s.log.InfoCtx(ctx, "account withdrawn", zap.Int64("subject_id", subjectID))
	return nil
}

// evict failures only leave a stale snapshot until its TTL, so they are logged
func (s *AccountService) evict(ctx context.Context, op string, subjectID int64, fn func(context.Context, int64) error) {
	if err := fn(ctx, subjectID); err != nil {
		s.log.WarnCtx(ctx, "profile eviction failed",
			zap.String("op", op), zap.Int64("subject_id", subjectID), zap.Error(err))
	}
}
