package auth

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/middleware"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type memoryDirectory struct {
	byEmail map[string]*User
}

func (d *memoryDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := d.byEmail[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (d *memoryDirectory) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range d.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc   *Service
	codec *token.Codec
	store session.Store
	clock *testClock
}

func newFixture(t *testing.T, cfg Config, store session.Store) *fixture {
	t.Helper()

	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	passwords := NewPasswordService(cfg.Password)
	hash, err := passwords.HashPassword(testPassword)
	require.NoError(t, err)

	dir := &memoryDirectory{byEmail: map[string]*User{
		"neo@example.com": {ID: 1, Email: "neo@example.com", Nickname: "neo", PasswordHash: hash, Roles: []string{"ROLE_USER"}},
	}}

	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	codec, err := token.NewCodec(token.Config{
		Secret:                   base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		AccessTokenExpirationMs:  (15 * time.Minute).Milliseconds(),
		RefreshTokenExpirationMs: (24 * time.Hour).Milliseconds(),
	}, token.WithClock(clock.Now), token.WithLogger(logger.NewNop()))
	require.NoError(t, err)

	metrics := NewMetrics()
	require.NoError(t, metrics.RegisterMetrics(noop.NewMeterProvider().Meter("auth")))

	return &fixture{
		svc:   NewService(cfg, dir, passwords, codec, store, metrics, logger.NewNop()),
		codec: codec,
		store: store,
		clock: clock,
	}
}

func newMemoryStore(t *testing.T) session.Store {
	s := session.NewMemoryStore(session.Config{})
	t.Cleanup(func() { s.Close() })
	return s
}

func eachMode(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, strict := range map[string]bool{"default": false, "strict": true} {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, Config{StrictRotation: strict}, newMemoryStore(t)))
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t, Config{}, newMemoryStore(t))
	ctx := context.Background()

	pair, user, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	stored, ok, err := f.store.GetSession(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pair.RefreshToken, stored)

	claims, err := f.codec.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "neo@example.com", claims.Email)
	assert.Equal(t, []string{"ROLE_USER"}, claims.Roles)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), pair.AccessExpiresAt)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), pair.RefreshExpiresAt)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t, Config{}, newMemoryStore(t))
	ctx := context.Background()

	_, _, err := f.svc.Login(ctx, "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, autherr.ErrUserNotFound)

	_, _, err = f.svc.Login(ctx, "neo@example.com", "wrong")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	_, ok, _ := f.store.GetSession(ctx, 1)
	assert.False(t, ok, "failed logins must not create a session")
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t, Config{}, newMemoryStore(t))
	ctx := context.Background()

	first, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrTokenMismatch)
}

func TestRefresh_SingleUse(t *testing.T) {
	eachMode(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
		require.NoError(t, err)

		rotated, err := f.svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
		assert.NotEqual(t, login.AccessToken, rotated.AccessToken)

		_, err = f.svc.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, autherr.ErrTokenMismatch)

		claims, err := f.codec.Verify(ctx, rotated.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, int64(1), claims.SubjectID)
		assert.Equal(t, "neo@example.com", claims.Email)
		assert.Equal(t, []string{"ROLE_USER"}, claims.Roles)
	})
}

func TestLogoutThenRefresh(t *testing.T) {
	eachMode(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
		require.NoError(t, err)
		require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))

		_, err = f.svc.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, autherr.ErrTokenMismatch)

		err = f.svc.Logout(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, autherr.ErrTokenMismatch)
	})
}

func TestFullLifecycle(t *testing.T) {
	eachMode(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
		require.NoError(t, err)

		f.clock.Advance(time.Minute)
		second, err := f.svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)

		f.clock.Advance(time.Minute)
		third, err := f.svc.Refresh(ctx, second.RefreshToken)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, third.RefreshToken))

		_, err = f.svc.Refresh(ctx, third.RefreshToken)
		assert.ErrorIs(t, err, autherr.ErrTokenMismatch)
	})
}

func TestRefresh_InvalidAndExpired(t *testing.T) {
	f := newFixture(t, Config{}, newMemoryStore(t))
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredential)

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour + time.Second)
	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrExpiredCredential)

	err = f.svc.Logout(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrExpiredCredential)
}

func TestInvalidateAll(t *testing.T) {
	f := newFixture(t, Config{}, newMemoryStore(t))
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, f.svc.InvalidateAll(ctx, 1, login.AccessToken))

	black, err := f.store.IsBlacklisted(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.True(t, black)

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrTokenMismatch)
}

func newRedisFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return newFixture(t, Config{}, session.NewRedisStore(client, session.Config{}, logger.NewNop())), mr
}

func TestInvalidateAll_BlacklistOutlivesVerification(t *testing.T) {
	f, mr := newRedisFixture(t)
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.svc.InvalidateAll(ctx, 1, login.AccessToken))

	assert.Equal(t, 10*time.Minute+token.ClockSkew, mr.TTL("blacklist:"+login.AccessToken))
	assert.False(t, mr.Exists("refreshToken:1"))
}

func TestInvalidateAll_RevokedStaysRejectedThroughSkew(t *testing.T) {
	f, mr := newRedisFixture(t)
	ctx := context.Background()
	authn := middleware.NewAuthenticator(f.codec, f.store, middleware.AuthConfig{}, logger.NewNop())

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)
	bearer := "Bearer " + login.AccessToken

	f.clock.Advance(15*time.Minute - 2*time.Second)
	require.NoError(t, f.svc.InvalidateAll(ctx, 1, login.AccessToken))

	state, _, err := authn.Resolve(ctx, "/api/users/me", bearer)
	assert.Equal(t, middleware.StateRejected, state)
	assert.ErrorIs(t, err, autherr.ErrBlacklistedCredential)

	// just past exp the codec still accepts the credential, the blacklist must too
	f.clock.Advance(2*time.Second + 300*time.Millisecond)
	mr.FastForward(2*time.Second + 300*time.Millisecond)
	_, err = f.codec.Verify(ctx, login.AccessToken)
	require.NoError(t, err)

	state, _, err = authn.Resolve(ctx, "/api/users/me", bearer)
	assert.Equal(t, middleware.StateRejected, state)
	assert.ErrorIs(t, err, autherr.ErrBlacklistedCredential)

	f.clock.Advance(700 * time.Millisecond)
	mr.FastForward(700 * time.Millisecond)
	state, _, err = authn.Resolve(ctx, "/api/users/me", bearer)
	assert.Equal(t, middleware.StateRejected, state)
	assert.ErrorIs(t, err, autherr.ErrExpiredCredential)
}

func TestInvalidateAll_InsideSkewWindowStillBlacklists(t *testing.T) {
	f, mr := newRedisFixture(t)
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(15*time.Minute + 400*time.Millisecond)
	require.NoError(t, f.svc.InvalidateAll(ctx, 1, login.AccessToken))

	assert.Equal(t, 600*time.Millisecond, mr.TTL("blacklist:"+login.AccessToken))
	black, err := f.store.IsBlacklisted(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.True(t, black)
}

func TestInvalidateAll_SkipsUnusableAccess(t *testing.T) {
	f := newFixture(t, Config{}, newMemoryStore(t))
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	require.NoError(t, f.svc.InvalidateAll(ctx, 1, login.AccessToken))

	black, _ := f.store.IsBlacklisted(ctx, login.AccessToken)
	assert.False(t, black, "expired credentials are not blacklisted")

	_, ok, _ := f.store.GetSession(ctx, 1)
	assert.False(t, ok)

	require.NoError(t, f.svc.InvalidateAll(ctx, 1, ""))
}

func TestStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, Config{}, session.NewRedisStore(client, session.Config{OperationTimeout: 200 * time.Millisecond}, logger.NewNop()))
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	mr.Close()

	_, _, err = f.svc.Login(ctx, "neo@example.com", testPassword)
	assert.Equal(t, autherr.KindStoreUnavailable, autherr.KindOf(err))

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	assert.Equal(t, autherr.KindStoreUnavailable, autherr.KindOf(err))

	err = f.svc.Logout(ctx, login.RefreshToken)
	assert.Equal(t, autherr.KindStoreUnavailable, autherr.KindOf(err))
}

// gatedStore holds every GetSession until all expected callers have read the session
type gatedStore struct {
	session.Store
	wg *sync.WaitGroup
}

func (g *gatedStore) GetSession(ctx context.Context, subjectID int64) (string, bool, error) {
	v, ok, err := g.Store.GetSession(ctx, subjectID)
	g.wg.Done()
	g.wg.Wait()
	return v, ok, err
}

func TestConcurrentRefresh_DefaultLastWriterWins(t *testing.T) {
	var gate sync.WaitGroup
	store := &gatedStore{Store: newMemoryStore(t), wg: &gate}
	f := newFixture(t, Config{}, store)
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	gate.Add(2)
	results := make([]*TokenPair, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Refresh(ctx, login.RefreshToken)
		}(i)
	}
	wg.Wait()

	// both refreshes observed the same session before either wrote
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, _, err := store.Store.GetSession(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, []string{results[0].RefreshToken, results[1].RefreshToken}, stored)
}

func TestConcurrentRefresh_StrictSingleWinner(t *testing.T) {
	f := newFixture(t, Config{StrictRotation: true}, newMemoryStore(t))
	ctx := context.Background()

	login, _, err := f.svc.Login(ctx, "neo@example.com", testPassword)
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refresh(ctx, login.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, autherr.ErrTokenMismatch)
	}
	assert.Equal(t, 1, wins)
}

func TestPasswordService(t *testing.T) {
	cfg := Config{}
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Password.Policy.RequireDigit = true
	cfg.ApplyDefaults()
	svc := NewPasswordService(cfg.Password)

	hash, err := svc.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, svc.CheckPassword("s3cret-pass", hash))
	assert.False(t, svc.CheckPassword("other", hash))
	assert.False(t, svc.CheckPassword("s3cret-pass", "not-a-hash"))

	assert.ErrorIs(t, svc.ValidatePassword("short1"), ErrPasswordTooShort)
	assert.ErrorIs(t, svc.ValidatePassword("no-digits-here"), ErrPasswordRequireDigit)
	assert.NoError(t, svc.ValidatePassword("has-digit-1"))
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 12, cfg.Password.BcryptCost)
	assert.False(t, cfg.StrictRotation)

	cfg.Password.BcryptCost = 40
	assert.Error(t, cfg.Validate())
}
