// Package api holds the HTTP handlers of the auth service.
package api

import (
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/middleware"
	"github.com/KOMKZ/go-yogan-tokenauth/profile"
	"github.com/KOMKZ/go-yogan-tokenauth/user"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefreshCookie is the cookie consulted when the refresh endpoint has no bearer header
const RefreshCookie = "refreshToken"

type Handler struct {
	auth     *auth.Service
	profiles *profile.Service
	accounts *user.AccountService
	log      *logger.CtxZapLogger
	now      func() time.Time
}

func NewHandler(authSvc *auth.Service, profiles *profile.Service, accounts *user.AccountService, log *logger.CtxZapLogger) *Handler {
	if log == nil {
		log = logger.GetLogger("api")
	}
	return &Handler{auth: authSvc, profiles: profiles, accounts: accounts, log: log, now: time.Now}
}

// ConnectionTest answers GET /api/auth/test
func (h *Handler) ConnectionTest(c *gin.Context) {
	httpx.OK(c, "backend server is running", ConnectionTestResponse{Time: h.now().UTC()})
}

func (h *Handler) Login(c *gin.Context, req *LoginRequest) (*LoginResponse, error) {
	pair, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: UserResponse{
			ID:       user.ID,
			Email:    user.Email,
			Nickname: user.Nickname,
			Roles:    user.Roles,
		},
	}, nil
}

func (h *Handler) Logout(c *gin.Context, req *LogoutRequest) (*struct{}, error) {
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		return nil, err
	}
	return nil, nil
}

// Refresh answers POST /api/auth/refresh. The credential comes from the
// bearer header, or the refreshToken cookie when the header is absent or malformed.
func (h *Handler) Refresh(c *gin.Context, _ *struct{}) (*TokenResponse, error) {
	refresh, ok := refreshCredential(c)
	if !ok {
		return nil, autherr.ErrMissingCredential
	}

	pair, err := h.auth.Refresh(c.Request.Context(), refresh)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func refreshCredential(c *gin.Context) (string, bool) {
	if tok, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		return tok, true
	}
	if cookie, err := c.Cookie(RefreshCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// Me answers GET /api/users/me with the caller's identity and cached profile
func (h *Handler) Me(c *gin.Context, _ *struct{}) (*MeResponse, error) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return nil, autherr.ErrUnauthenticated
	}

	p, err := h.profiles.Get(c.Request.Context(), id.SubjectID)
	if err != nil {
		return nil, err
	}

	return &MeResponse{
		ID:              id.SubjectID,
		Email:           id.Email,
		Roles:           id.Roles,
		Nickname:        p.Nickname,
		ProfileImageURL: p.ProfileImageURL,
	}, nil
}

// RevokeSessions answers POST /api/users/me/sessions/revoke: the current access
// credential is blacklisted and the refresh session deleted
func (h *Handler) RevokeSessions(c *gin.Context, _ *struct{}) (*struct{}, error) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return nil, autherr.ErrUnauthenticated
	}

	ctx := c.Request.Context()
	if err := h.auth.InvalidateAll(ctx, id.SubjectID, id.AccessToken); err != nil {
		return nil, err
	}
	if err := h.profiles.EvictAll(ctx, id.SubjectID); err != nil {
		h.log.WarnCtx(ctx, "profile eviction after revoke failed", zap.Int64("subject_id", id.SubjectID), zap.Error(err))
	}
	return nil, nil
}

// ChangePassword answers PUT /api/users/me/password. Every session of the
// caller ends, so the client has to log in again.
func (h *Handler) ChangePassword(c *gin.Context, req *ChangePasswordRequest) (*struct{}, error) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return nil, autherr.ErrUnauthenticated
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), id.SubjectID, id.AccessToken, req.OldPassword, req.NewPassword); err != nil {
		return nil, err
	}
	return nil, nil
}

// UpdateProfile answers PUT /api/users/me/profile
func (h *Handler) UpdateProfile(c *gin.Context, req *ProfileUpdateRequest) (*ProfileResponse, error) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return nil, autherr.ErrUnauthenticated
	}

	p, err := h.accounts.UpdateProfile(c.Request.Context(), id.SubjectID, user.ProfileUpdate{
		Nickname:        req.Nickname,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Nickname: p.Nickname, ProfileImageURL: p.ProfileImageURL}, nil
}

// Withdraw answers DELETE /api/users/me
func (h *Handler) Withdraw(c *gin.Context, _ *struct{}) (*struct{}, error) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return nil, autherr.ErrUnauthenticated
	}
	if err := h.accounts.Withdraw(c.Request.Context(), id.SubjectID, id.AccessToken); err != nil {
		return nil, err
	}
	return nil, nil
}

// RegisterRoutes mounts the endpoints on the /api group.
// The group must already run middleware.Authenticate.
func RegisterRoutes(api *gin.RouterGroup, h *Handler, reporter middleware.HealthReporter) {
	authGroup := api.Group("/auth")
	authGroup.GET("/test", h.ConnectionTest)
	authGroup.POST("/login", httpx.WrapWithMessage("login successful", h.Login))
	authGroup.POST("/logout", httpx.WrapWithMessage("logout successful", h.Logout))
	authGroup.POST("/refresh", httpx.WrapWithMessage("access token reissued", h.Refresh))

	users := api.Group("/users", middleware.RequireIdentity())
	users.GET("/me", httpx.WrapWithMessage("profile loaded", h.Me))
	users.POST("/me/sessions/revoke", httpx.WrapWithMessage("sessions revoked", h.RevokeSessions))
	users.PUT("/me/password", httpx.WrapWithMessage("password changed", h.ChangePassword))
	users.PUT("/me/profile", httpx.WrapWithMessage("profile updated", h.UpdateProfile))
	users.DELETE("/me", httpx.WrapWithMessage("account withdrawn", h.Withdraw))

	middleware.RegisterHealthRoutes(api, reporter)
}
