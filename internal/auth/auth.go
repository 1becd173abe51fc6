// Package auth turns a login session into a trusted domain.User.
package auth

import (
	"errors"
	"net/http"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/dkeye/CodeSync/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	sessionUserKey  = "user_id"
	sessionStateKey = "oauth_state"
	sessionNextKey  = "next"
	contextUserKey  = "user"
)

type Authenticator interface {
	Authenticate(c *gin.Context) (*domain.User, error)
}

// SessionAuthenticator resolves the user id kept in the login session.
type SessionAuthenticator struct {
	Users store.Users
}

func (a *SessionAuthenticator) Authenticate(c *gin.Context) (*domain.User, error) {
	id, _ := sessions.Default(c).Get(sessionUserKey).(string)
	if id == "" {
		return nil, ErrUnauthorized
	}
	u, err := a.Users.Get(c.Request.Context(), domain.UserID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// RequireUser aborts with 401 unless the request carries a login session.
func RequireUser(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := a.Authenticate(c)
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				log.Error().Err(err).Str("module", "auth").Msg("authenticate")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		c.Set(contextUserKey, u)
		c.Next()
	}
}

// UserFrom returns the user stored by RequireUser.
func UserFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}
