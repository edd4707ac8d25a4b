// Package session implements the ephemeral session store. The Redis
// implementation is the production path; the memory implementation backs
// unit tests with the same contract.
package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
)

const (
	// Session keys follow the session_id:<token> convention.
	sessionKeyPrefix = "session_id:"

	stateField   = "state"
	createdField = "created_at"
)

var sessionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "identityd_session_store_ops_total",
	Help: "Session store operations by operation and result",
}, []string{"op", "result"})

// RedisStore keeps one Redis hash per session under a TTL. State-changing
// writes refresh the TTL; reads never do.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a session store on an externally managed client.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) ResolveOrCreate(ctx context.Context, token string) (string, models.State, bool, error) {
	if token != "" {
		state, err := s.ReadState(ctx, token)
		switch {
		case err == nil:
			return token, state, false, nil
		case dErrors.HasCode(err, dErrors.CodeTransient):
			return "", 0, false, err
		}
		// Missing, expired, or malformed: indistinguishable from a client
		// that never had a session. Fall through and mint.
	}

	fresh, err := models.NewSessionToken()
	if err != nil {
		return "", 0, false, dErrors.Wrap(err, dErrors.CodeInternal, "mint session token")
	}
	if err := s.create(ctx, fresh); err != nil {
		sessionOpsTotal.WithLabelValues("create", "error").Inc()
		return "", 0, false, err
	}
	sessionOpsTotal.WithLabelValues("create", "ok").Inc()
	return fresh, models.StateAnonymous, true, nil
}

func (s *RedisStore) ReadState(ctx context.Context, token string) (models.State, error) {
	if token == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "empty session token")
	}

	raw, err := s.client.HGet(ctx, sessionKeyPrefix+token, stateField).Result()
	if errors.Is(err, redis.Nil) {
		sessionOpsTotal.WithLabelValues("read", "miss").Inc()
		return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown or expired session")
	}
	if err != nil {
		sessionOpsTotal.WithLabelValues("read", "error").Inc()
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "session store read failed")
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		sessionOpsTotal.WithLabelValues("read", "corrupt").Inc()
		return 0, dErrors.New(dErrors.CodeInvalidInput, "corrupt session state")
	}
	state, ok := models.ParseState(value)
	if !ok {
		sessionOpsTotal.WithLabelValues("read", "corrupt").Inc()
		return 0, dErrors.New(dErrors.CodeInvalidInput, "corrupt session state")
	}
	sessionOpsTotal.WithLabelValues("read", "ok").Inc()
	return state, nil
}

func (s *RedisStore) WriteState(ctx context.Context, token string, state models.State) error {
	if token == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "empty session token")
	}
	if err := s.write(ctx, token, state); err != nil {
		sessionOpsTotal.WithLabelValues("write", "error").Inc()
		return err
	}
	sessionOpsTotal.WithLabelValues("write", "ok").Inc()
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		sessionOpsTotal.WithLabelValues("delete", "error").Inc()
		return dErrors.Wrap(err, dErrors.CodeTransient, "session store delete failed")
	}
	sessionOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// create initializes a fresh anonymous record with its creation stamp.
func (s *RedisStore) create(ctx context.Context, token string) error {
	key := sessionKeyPrefix + token
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			stateField, int(models.StateAnonymous),
			createdField, time.Now().Unix(),
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "session store write failed")
	}
	return nil
}

// write overwrites the state and refreshes the TTL; created_at is untouched.
func (s *RedisStore) write(ctx context.Context, token string, state models.State) error {
	key := sessionKeyPrefix + token
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, stateField, int(state))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "session store write failed")
	}
	return nil
}
