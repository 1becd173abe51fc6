// Package store persists user identities. It never stores documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/CodeSync/internal/domain"
)

var ErrNotFound = errors.New("user not found")

// Profile is what an identity provider tells us about a user.
type Profile struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	Avatar      string
}

type Users interface {
	// Upsert creates or refreshes the user keyed by (Provider, Subject).
	Upsert(ctx context.Context, p Profile) (*domain.User, error)
	Get(ctx context.Context, id domain.UserID) (*domain.User, error)
	Close() error
}

func Open(ctx context.Context, driver, dsn string) (Users, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// normalize fills in a usable display name and caps it.
func (p Profile) normalize() (Profile, error) {
	if p.Provider == "" || p.Subject == "" {
		return p, errors.New("profile needs provider and subject")
	}
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		local, _, _ := strings.Cut(p.Email, "@")
		p.DisplayName = local
	}
	if p.DisplayName == "" {
		p.DisplayName = "anonymous"
	}
	for len(p.DisplayName) > domain.MaxUsernameLen {
		_, size := utf8.DecodeLastRuneInString(p.DisplayName)
		p.DisplayName = p.DisplayName[:len(p.DisplayName)-size]
	}
	return p, nil
}
