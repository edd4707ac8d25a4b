//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
	"identityd/pkg/testutil/containers"
)

func TestRedisStore_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	t.Run("resolve-create-read-write-delete cycle", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		store := NewRedis(rc.Client, time.Hour)

		token, state, created, err := store.ResolveOrCreate(ctx, "")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.StateAnonymous, state)

		// The key follows the session_id:<token> convention with a TTL set.
		ttl, err := rc.Client.TTL(ctx, "session_id:"+token).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)

		require.NoError(t, store.WriteState(ctx, token, models.StateRegistered))
		got, err := store.ReadState(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.StateRegistered, got)

		// Resolving the same token returns it untouched.
		same, state, created, err := store.ResolveOrCreate(ctx, token)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, token, same)
		assert.Equal(t, models.StateRegistered, state)

		require.NoError(t, store.Delete(ctx, token))
		_, err = store.ReadState(ctx, token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("expired token behaves like never issued", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		store := NewRedis(rc.Client, time.Second)

		token, _, _, err := store.ResolveOrCreate(ctx, "")
		require.NoError(t, err)

		time.Sleep(1500 * time.Millisecond)

		_, errExpired := store.ReadState(ctx, token)
		_, errNever := store.ReadState(ctx, "00000000-0000-0000-0000-000000000000")
		require.Error(t, errExpired)
		require.Error(t, errNever)
		assert.Equal(t, dErrors.GetCode(errNever), dErrors.GetCode(errExpired))

		// Resolving mints a replacement rather than resurrecting the token.
		fresh, _, created, err := store.ResolveOrCreate(ctx, token)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, token, fresh)
	})

	t.Run("corrupt state reads as invalid session", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		store := NewRedis(rc.Client, time.Hour)

		require.NoError(t, rc.Client.HSet(ctx, "session_id:corrupt", "state", 42).Err())
		_, err := store.ReadState(ctx, "corrupt")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("tokens are unique and time-ordered", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		store := NewRedis(rc.Client, time.Hour)

		seen := make(map[string]bool)
		var prev string
		for i := 0; i < 20; i++ {
			token, _, _, err := store.ResolveOrCreate(ctx, "")
			require.NoError(t, err)
			assert.False(t, seen[token])
			seen[token] = true
			if prev != "" {
				// UUIDv7 sorts by creation time lexicographically.
				assert.LessOrEqual(t, prev, token)
			}
			prev = token
			time.Sleep(2 * time.Millisecond)
		}
	})
}
