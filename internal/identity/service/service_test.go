package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityd/internal/identity/models"
	"identityd/internal/identity/password"
	"identityd/internal/identity/store/lockout"
	"identityd/internal/identity/store/session"
	"identityd/internal/identity/store/user"
	dErrors "identityd/pkg/domain-errors"
	"identityd/pkg/platform/audit"
	"identityd/pkg/platform/audit/publisher"
)

const sessionTTL = 24 * time.Hour

// cheapParams keeps hashing fast; cost tuning is covered in the password
// package tests.
func cheapParams() password.Params {
	return password.Params{
		MemoryKiB:   1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type fixture struct {
	svc      *Service
	sessions *session.MemoryStore
	users    *user.MemoryStore
	lockout  *lockout.MemoryStore
	auditor  *publisher.Memory
	pool     *password.Pool
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newFakeClock()
	sessions := session.NewMemoryWithClock(sessionTTL, clock.Now)
	users := user.NewMemory()
	locks := lockout.NewMemoryWithClock(clock.Now)
	auditor := publisher.NewMemory()

	pool := password.NewPool(password.NewArgon2id(cheapParams()), 2, time.Second)
	t.Cleanup(pool.Close)

	opts = append([]Option{
		WithAuditPublisher(auditor),
		WithLockout(locks, 3, 15*time.Minute),
	}, opts...)

	svc, err := New(sessions, users, pool, opts...)
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		sessions: sessions,
		users:    users,
		lockout:  locks,
		auditor:  auditor,
		pool:     pool,
		clock:    clock,
	}
}

func validRegister() models.RegisterRequest {
	return models.RegisterRequest{
		Username:  "gordon",
		Password:  "correct horse battery",
		BirthDate: "1990-04-01",
		Email:     "gordon@example.com",
	}
}

func (f *fixture) register(t *testing.T, token string) models.Outcome {
	t.Helper()
	out, err := f.svc.Register(context.Background(), token, validRegister())
	require.NoError(t, err)
	return out
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("new visitor gets a promoted session and a durable record", func(t *testing.T) {
		f := newFixture(t)

		out, err := f.svc.Register(ctx, "", validRegister())
		require.NoError(t, err)

		assert.NotEmpty(t, out.Token)
		assert.Equal(t, models.StateRegistered, out.State)
		assert.True(t, out.SetCookie, "a fresh session must be issued to the client")

		state, err := f.sessions.ReadState(ctx, out.Token)
		require.NoError(t, err)
		assert.Equal(t, models.StateRegistered, state)

		stored, err := f.users.FindByIdentity(ctx, "gordon")
		require.NoError(t, err)
		assert.Equal(t, "gordon@example.com", stored.Email)
		assert.NotEqual(t, "correct horse battery", stored.PasswordHash, "plaintext must never be stored")
	})

	t.Run("existing anonymous session is promoted in place", func(t *testing.T) {
		f := newFixture(t)
		token, _, _, err := f.sessions.ResolveOrCreate(ctx, "")
		require.NoError(t, err)

		out, err := f.svc.Register(ctx, token, validRegister())
		require.NoError(t, err)

		assert.Equal(t, token, out.Token)
		assert.False(t, out.SetCookie, "the presented session stays valid, no reissue")
	})

	t.Run("expired session is treated like no session at all", func(t *testing.T) {
		f := newFixture(t)
		token, _, _, err := f.sessions.ResolveOrCreate(ctx, "")
		require.NoError(t, err)

		f.clock.Advance(sessionTTL + time.Minute)

		out, err := f.svc.Register(ctx, token, validRegister())
		require.NoError(t, err)

		assert.NotEqual(t, token, out.Token)
		assert.True(t, out.SetCookie)
	})

	t.Run("malformed birth date rejected before any store access", func(t *testing.T) {
		f := newFixture(t)
		req := validRegister()
		req.BirthDate = "April 1st 1990"

		_, err := f.svc.Register(ctx, "", req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Equal(t, 0, f.users.Count())
	})

	t.Run("registered session cannot register again", func(t *testing.T) {
		f := newFixture(t)
		out := f.register(t, "")

		second := validRegister()
		second.Username = "different"
		second.Email = "different@example.com"

		_, err := f.svc.Register(ctx, out.Token, second)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, 1, f.users.Count(), "the rejected attempt must not create a record")

		state, err := f.sessions.ReadState(ctx, out.Token)
		require.NoError(t, err)
		assert.Equal(t, models.StateRegistered, state, "the session is unchanged by the conflict")
	})

	t.Run("duplicate identity from another session leaves it anonymous", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		out2, _, _, err := f.sessions.ResolveOrCreate(ctx, "")
		require.NoError(t, err)

		_, err = f.svc.Register(ctx, out2, validRegister())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		state, err := f.sessions.ReadState(ctx, out2)
		require.NoError(t, err)
		assert.Equal(t, models.StateAnonymous, state)
		assert.Equal(t, 1, f.users.Count())
	})

	t.Run("concurrent registers for one email produce exactly one record", func(t *testing.T) {
		f := newFixture(t)

		const attempts = 8
		results := make(chan error, attempts)
		var wg sync.WaitGroup
		wg.Add(attempts)
		for i := 0; i < attempts; i++ {
			go func() {
				defer wg.Done()
				_, err := f.svc.Register(ctx, "", validRegister())
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var succeeded, conflicted int
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicted++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, attempts-1, conflicted)
		assert.Equal(t, 1, f.users.Count())
	})

	t.Run("session store outage surfaces as transient", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.FailNext(errors.New("connection refused"))

		_, err := f.svc.Register(ctx, "", validRegister())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTransient))
	})

	t.Run("user store outage surfaces as transient and skips promotion", func(t *testing.T) {
		f := newFixture(t)
		token, _, _, err := f.sessions.ResolveOrCreate(ctx, "")
		require.NoError(t, err)

		f.users.FailNext(errors.New("connection refused"))

		_, err = f.svc.Register(ctx, token, validRegister())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTransient))

		state, err := f.sessions.ReadState(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.StateAnonymous, state, "no promotion without a durable record")
	})

	t.Run("emits an audit event on success", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		events := f.auditor.Events()
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionUserRegistered, events[0].Action)
		assert.Equal(t, "gordon", events[0].Identity)
		assert.NotEmpty(t, events[0].UserID)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	login := func(identity, pass string) models.LoginRequest {
		return models.LoginRequest{Identity: identity, Password: pass}
	}

	t.Run("valid credentials promote the session", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		out, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		require.NoError(t, err)
		assert.Equal(t, models.StateRegistered, out.State)
		assert.True(t, out.SetCookie)

		state, err := f.sessions.ReadState(ctx, out.Token)
		require.NoError(t, err)
		assert.Equal(t, models.StateRegistered, state)
	})

	t.Run("email works as identity too", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		_, err := f.svc.Login(ctx, "", login("gordon@example.com", "correct horse battery"))
		require.NoError(t, err)
	})

	t.Run("unknown identity is not_found, not unauthorized", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Login(ctx, "", login("nobody", "whatever password"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("wrong password is unauthorized and mutates nothing", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		token, _, _, err := f.sessions.ResolveOrCreate(ctx, "")
		require.NoError(t, err)

		_, err = f.svc.Login(ctx, token, login("gordon", "wrong password"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		state, err := f.sessions.ReadState(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.StateAnonymous, state)
	})

	t.Run("locked out after repeated failures", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		for i := 0; i < 3; i++ {
			_, err := f.svc.Login(ctx, "", login("gordon", "wrong password"))
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		}

		// Even the right password is refused while the lock holds.
		_, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	})

	t.Run("lockout window lapses", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		for i := 0; i < 3; i++ {
			_, _ = f.svc.Login(ctx, "", login("gordon", "wrong password"))
		}
		f.clock.Advance(16 * time.Minute)

		_, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		require.NoError(t, err)
	})

	t.Run("successful login clears the failure count", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		for i := 0; i < 2; i++ {
			_, _ = f.svc.Login(ctx, "", login("gordon", "wrong password"))
		}
		_, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		require.NoError(t, err)

		count, err := f.lockout.Failures(ctx, "gordon")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("lockout store outage fails open", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		f.lockout.FailNext(errors.New("connection refused"))

		_, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		require.NoError(t, err, "an unavailable lockout store must not block logins")
	})

	t.Run("user store outage surfaces as transient", func(t *testing.T) {
		f := newFixture(t)
		f.users.FailNext(errors.New("connection refused"))

		_, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTransient))
	})

	t.Run("emits audit events for failure and success", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "")

		_, _ = f.svc.Login(ctx, "", login("gordon", "wrong password"))
		_, err := f.svc.Login(ctx, "", login("gordon", "correct horse battery"))
		require.NoError(t, err)

		events := f.auditor.Events()
		require.Len(t, events, 3)
		assert.Equal(t, audit.ActionUserRegistered, events[0].Action)
		assert.Equal(t, audit.ActionLoginFailed, events[1].Action)
		assert.Equal(t, "password mismatch", events[1].Reason)
		assert.Equal(t, audit.ActionLoginSucceeded, events[2].Action)
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates the old token and mints a fresh anonymous one", func(t *testing.T) {
		f := newFixture(t)
		out := f.register(t, "")

		fresh, err := f.svc.Logout(ctx, out.Token)
		require.NoError(t, err)

		assert.NotEqual(t, out.Token, fresh.Token)
		assert.Equal(t, models.StateAnonymous, fresh.State)
		assert.True(t, fresh.SetCookie)

		_, err = f.sessions.ReadState(ctx, out.Token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "the old token is gone for good")
	})

	t.Run("two logouts produce two distinct usable sessions", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.svc.Logout(ctx, "")
		require.NoError(t, err)
		second, err := f.svc.Logout(ctx, first.Token)
		require.NoError(t, err)

		assert.NotEqual(t, first.Token, second.Token)

		state, err := f.sessions.ReadState(ctx, second.Token)
		require.NoError(t, err)
		assert.Equal(t, models.StateAnonymous, state)
	})

	t.Run("logout without a token still succeeds", func(t *testing.T) {
		f := newFixture(t)

		out, err := f.svc.Logout(ctx, "")
		require.NoError(t, err)
		assert.NotEmpty(t, out.Token)
		assert.True(t, out.SetCookie)
	})

	t.Run("session store outage surfaces as transient", func(t *testing.T) {
		f := newFixture(t)
		out := f.register(t, "")

		f.sessions.FailNext(errors.New("connection refused"))

		_, err := f.svc.Logout(ctx, out.Token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTransient))
	})
}

func TestService_New(t *testing.T) {
	pool := password.NewPool(password.NewArgon2id(cheapParams()), 1, time.Second)
	t.Cleanup(pool.Close)

	t.Run("rejects missing dependencies", func(t *testing.T) {
		_, err := New(nil, user.NewMemory(), pool)
		assert.Error(t, err)
		_, err = New(session.NewMemory(sessionTTL), nil, pool)
		assert.Error(t, err)
		_, err = New(session.NewMemory(sessionTTL), user.NewMemory(), nil)
		assert.Error(t, err)
	})
}
