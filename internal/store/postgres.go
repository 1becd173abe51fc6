package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	provider TEXT NOT NULL,
	subject TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL,
	avatar TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (provider, subject)
);
`

type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Info().Str("module", "store").Msg("postgres ready")
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Upsert(ctx context.Context, p Profile) (*domain.User, error) {
	p, err := p.normalize()
	if err != nil {
		return nil, err
	}
	u := &domain.User{}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (id, provider, subject, email, display_name, avatar)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, subject) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			avatar = EXCLUDED.avatar,
			updated_at = now()
		RETURNING id::text, display_name, email, avatar`,
		uuid.NewString(), p.Provider, p.Subject, p.Email, p.DisplayName, p.Avatar,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Avatar)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *Postgres) Get(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if _, err := uuid.Parse(string(id)); err != nil {
		return nil, ErrNotFound
	}
	u := &domain.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, display_name, email, avatar FROM users WHERE id = $1`, string(id),
	).Scan(&u.ID, &u.Username, &u.Email, &u.Avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
