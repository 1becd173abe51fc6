package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/dkeye/CodeSync/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

func NewGoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}
}

// Handlers serves the login routes. OAuth is nil when Google login is off.
type Handlers struct {
	Users       store.Users
	Auth        Authenticator
	OAuth       *oauth2.Config
	UserInfoURL string
	DevLogin    bool
}

type googleProfile struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (h *Handlers) GoogleLogin(c *gin.Context) {
	state := uuid.NewString()
	s := sessions.Default(c)
	s.Set(sessionStateKey, state)
	if next := safeNext(c.Query("next")); next != "" {
		s.Set(sessionNextKey, next)
	}
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("save oauth state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session"})
		return
	}
	c.Redirect(http.StatusFound, h.OAuth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (h *Handlers) GoogleCallback(c *gin.Context) {
	s := sessions.Default(c)
	want, _ := s.Get(sessionStateKey).(string)
	if want == "" || c.Query("state") != want {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	s.Delete(sessionStateKey)

	ctx := c.Request.Context()
	tok, err := h.OAuth.Exchange(ctx, c.Query("code"))
	if err != nil {
		log.Warn().Err(err).Str("module", "auth").Msg("oauth exchange")
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
		return
	}
	p, err := h.fetchProfile(c, tok)
	if err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("fetch google profile")
		c.JSON(http.StatusBadGateway, gin.H{"error": "profile"})
		return
	}
	u, err := h.Users.Upsert(ctx, store.Profile{
		Provider:    "google",
		Subject:     p.Sub,
		Email:       p.Email,
		DisplayName: p.Name,
		Avatar:      p.Picture,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("upsert google user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
		return
	}

	next, _ := s.Get(sessionNextKey).(string)
	s.Delete(sessionNextKey)
	if !h.login(c, u) {
		return
	}
	if next == "" {
		next = "/"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *Handlers) fetchProfile(c *gin.Context, tok *oauth2.Token) (*googleProfile, error) {
	url := h.UserInfoURL
	if url == "" {
		url = GoogleUserInfoURL
	}
	resp, err := h.OAuth.Client(c.Request.Context(), tok).Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if p.Sub == "" {
		return nil, errors.New("userinfo without sub")
	}
	return &p, nil
}

// Dev logs in by display name alone. Only mounted when enabled in config.
func (h *Handlers) Dev(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := domain.ValidateUsername(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.Users.Upsert(c.Request.Context(), store.Profile{Provider: "dev", Subject: name, DisplayName: name})
	if err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("upsert dev user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
		return
	}
	if h.login(c, u) {
		c.JSON(http.StatusOK, u)
	}
}

func (h *Handlers) Logout(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("logout")
	}
	c.Redirect(http.StatusFound, "/")
}

// Me answers the current user, or null when logged out.
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.Auth.Authenticate(c)
	if err != nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handlers) login(c *gin.Context, u *domain.User) bool {
	s := sessions.Default(c)
	s.Set(sessionUserKey, string(u.ID))
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("save login session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session"})
		return false
	}
	log.Info().Str("module", "auth").Str("user", string(u.ID)).Str("username", u.Username).Msg("logged in")
	return true
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
