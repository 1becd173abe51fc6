package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	subject TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL,
	avatar TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (provider, subject)
);
`

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps upserts from hitting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Info().Str("module", "store").Str("path", path).Msg("sqlite ready")
	return &SQLite{db: db}, nil
}

func (s *SQLite) Upsert(ctx context.Context, p Profile) (*domain.User, error) {
	p, err := p.normalize()
	if err != nil {
		return nil, err
	}
	u := &domain.User{}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, provider, subject, email, display_name, avatar)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, subject) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			avatar = excluded.avatar,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, display_name, email, avatar`,
		uuid.NewString(), p.Provider, p.Subject, p.Email, p.DisplayName, p.Avatar,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Avatar)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *SQLite) Get(ctx context.Context, id domain.UserID) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, email, avatar FROM users WHERE id = ?`, string(id),
	).Scan(&u.ID, &u.Username, &u.Email, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
