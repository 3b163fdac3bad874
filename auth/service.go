// Package auth drives the token lifecycle: login, logout, refresh rotation
// and invalidation of a subject's credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
	"go.uber.org/zap"
)

// TokenPair is the result of login and refresh
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service is the token lifecycle orchestrator
type Service struct {
	cfg       Config
	directory UserDirectory
	passwords *PasswordService
	codec     *token.Codec
	store     session.Store
	metrics   *Metrics
	logger    *logger.CtxZapLogger
}

// NewService wires the orchestrator. metrics and log may be nil.
func NewService(cfg Config, directory UserDirectory, passwords *PasswordService, codec *token.Codec,
	store session.Store, metrics *Metrics, log *logger.CtxZapLogger) *Service {
	if log == nil {
		log = logger.GetLogger("auth")
	}
	return &Service{
		cfg:       cfg,
		directory: directory,
		passwords: passwords,
		codec:     codec,
		store:     store,
		metrics:   metrics,
		logger:    log,
	}
}

// Login checks the password and starts a new session, replacing any previous one
func (s *Service) Login(ctx context.Context, email, password string) (pair *TokenPair, user *User, err error) {
	defer s.observe(ctx, "login", time.Now(), &err)

	user, err = s.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.WarnCtx(ctx, "login for unknown email")
			return nil, nil, autherr.ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("find user by email: %w", err)
	}

	if !s.passwords.CheckPassword(password, user.PasswordHash) {
		s.logger.WarnCtx(ctx, "login password mismatch", zap.Int64("subject_id", user.ID))
		return nil, nil, autherr.ErrInvalidCredentials
	}

	pair, err = s.issuePair(ctx, user.principal())
	if err != nil {
		return nil, nil, err
	}

	if err = s.store.PutSession(ctx, user.ID, pair.RefreshToken, s.codec.RefreshLifetime()); err != nil {
		return nil, nil, err
	}

	s.logger.InfoCtx(ctx, "login succeeded",
		zap.Int64("subject_id", user.ID),
		zap.Int("access_length", len(pair.AccessToken)),
		zap.Int("refresh_length", len(pair.RefreshToken)),
	)
	return pair, user, nil
}

// Logout ends the session the refresh credential belongs to.
// A credential that is not the subject's current session fails with ErrTokenMismatch.
func (s *Service) Logout(ctx context.Context, refresh string) (err error) {
	defer s.observe(ctx, "logout", time.Now(), &err)

	claims, err := s.codec.Verify(ctx, refresh)
	if err != nil {
		return err
	}

	if s.cfg.StrictRotation {
		deleted, err := s.store.DeleteSessionIf(ctx, claims.SubjectID, refresh)
		if err != nil {
			return err
		}
		if !deleted {
			return s.mismatch(ctx, "logout", claims.SubjectID)
		}
	} else {
		if err := s.matchSession(ctx, "logout", claims.SubjectID, refresh); err != nil {
			return err
		}
		if err := s.store.DeleteSession(ctx, claims.SubjectID); err != nil {
			return err
		}
	}

	s.logger.InfoCtx(ctx, "logout succeeded", zap.Int64("subject_id", claims.SubjectID))
	return nil
}

// Refresh rotates the session: the presented refresh credential is consumed and
// a new access and refresh pair carrying the same identity is issued.
func (s *Service) Refresh(ctx context.Context, refresh string) (pair *TokenPair, err error) {
	defer s.observe(ctx, "refresh", time.Now(), &err)

	claims, err := s.codec.Verify(ctx, refresh)
	if err != nil {
		return nil, err
	}

	if !s.cfg.StrictRotation {
		if err = s.matchSession(ctx, "refresh", claims.SubjectID, refresh); err != nil {
			return nil, err
		}
	}

	pair, err = s.issuePair(ctx, claims.Principal())
	if err != nil {
		return nil, err
	}

	ttl := s.codec.RefreshLifetime()
	if s.cfg.StrictRotation {
		swapped, err := s.store.SwapSession(ctx, claims.SubjectID, refresh, pair.RefreshToken, ttl)
		if err != nil {
			return nil, err
		}
		if !swapped {
			return nil, s.mismatch(ctx, "refresh", claims.SubjectID)
		}
	} else if err = s.store.PutSession(ctx, claims.SubjectID, pair.RefreshToken, ttl); err != nil {
		return nil, err
	}

	s.logger.InfoCtx(ctx, "session rotated", zap.Int64("subject_id", claims.SubjectID))
	return pair, nil
}

// InvalidateAll ends the subject's session and revokes currentAccess until it stops verifying.
// Other access credentials of the subject stay valid until they expire.
func (s *Service) InvalidateAll(ctx context.Context, subjectID int64, currentAccess string) (err error) {
	defer s.observe(ctx, "invalidate_all", time.Now(), &err)

	var (
		access string
		ttl    time.Duration
	)
	if currentAccess != "" {
		claims, verr := s.codec.Verify(ctx, currentAccess)
		switch {
		case verr != nil:
			// expired or unverifiable credentials are already rejected by the middleware
			s.logger.DebugCtx(ctx, "current access credential not revocable",
				zap.Int64("subject_id", subjectID),
				zap.String("reason", string(autherr.KindOf(verr))),
			)
		case claims.SubjectID != subjectID:
			s.logger.WarnCtx(ctx, "current access credential belongs to another subject",
				zap.Int64("subject_id", subjectID),
				zap.Int64("credential_subject_id", claims.SubjectID),
			)
		default:
			access = currentAccess
			ttl = claims.RevocationTTL(s.codec.Now())
		}
	}

	if err = s.store.InvalidateAll(ctx, subjectID, access, ttl); err != nil {
		return err
	}

	s.logger.InfoCtx(ctx, "subject credentials invalidated",
		zap.Int64("subject_id", subjectID),
		zap.Duration("blacklist_ttl", ttl),
	)
	return nil
}

func (s *Service) issuePair(ctx context.Context, p token.Principal) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(ctx, p)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefresh(ctx, p)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// matchSession requires refresh to equal the stored session exactly
func (s *Service) matchSession(ctx context.Context, op string, subjectID int64, refresh string) error {
	stored, found, err := s.store.GetSession(ctx, subjectID)
	if err != nil {
		return err
	}
	if !found || stored != refresh {
		return s.mismatch(ctx, op, subjectID)
	}
	return nil
}

func (s *Service) mismatch(ctx context.Context, op string, subjectID int64) error {
	s.logger.WarnCtx(ctx, "refresh credential is not the current session",
		zap.String("op", op),
		zap.Int64("subject_id", subjectID),
	)
	return autherr.ErrTokenMismatch
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err *error) {
	s.metrics.Record(ctx, op, *err, time.Since(start))
}
