// Package user implements the durable credential store. Uniqueness of
// username and email is enforced here by the database constraint, never by
// in-process coordination: concurrent duplicate inserts race safely and the
// loser gets a conflict.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
)

// Schema is the users table DDL. Applied by deploy tooling and by
// integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    username      TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    birth_date    DATE NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT users_username_key UNIQUE (username),
    CONSTRAINT users_email_key UNIQUE (email)
);
`

// PostgresStore persists user records through a shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, user models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, birth_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.BirthDate, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return dErrors.Wrap(err, dErrors.CodeConflict, conflictMessage(pgErr.ConstraintName))
		}
		return dErrors.Wrap(err, dErrors.CodeTransient, "insert user failed")
	}
	return nil
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, identity string) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, birth_date, created_at
		FROM users
		WHERE username = $1 OR email = $1`,
		identity,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.BirthDate, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, dErrors.New(dErrors.CodeNotFound, "unknown identity")
	}
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeTransient, "find user failed")
	}
	return user, nil
}

func conflictMessage(constraint string) string {
	switch constraint {
	case "users_username_key":
		return "username already taken"
	case "users_email_key":
		return "email already taken"
	default:
		return "identity already taken"
	}
}
