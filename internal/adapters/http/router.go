package http

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dkeye/CodeSync/internal/adapters/signal"
	"github.com/dkeye/CodeSync/internal/app/orch"
	"github.com/dkeye/CodeSync/internal/auth"
	"github.com/dkeye/CodeSync/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an id, reusing the caller's
// when present.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

type Deps struct {
	Config   *config.Config
	Orch     *orch.Orchestrator
	Signal   *signal.SignalWSController
	Auth     auth.Authenticator
	Login    *auth.Handlers
	Sessions sessions.Store
}

func SetupRouter(ctx context.Context, d Deps) *gin.Engine {
	cfg := d.Config
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	d.Sessions.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		Secure:   cfg.Session.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.Session.Name, d.Sessions))

	index := filepath.Join(cfg.StaticPath, "index.html")
	r.Static("/static", filepath.Join(cfg.StaticPath, "static"))
	r.GET("/", func(c *gin.Context) {
		c.File(index)
	})
	r.GET("/editor/:id", func(c *gin.Context) {
		if _, err := d.Auth.Authenticate(c); err != nil {
			c.Redirect(http.StatusFound, "/?next=/editor/"+c.Param("id"))
			return
		}
		c.File(index)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	login := d.Login
	if login.OAuth != nil {
		r.GET("/auth/google", login.GoogleLogin)
		r.GET("/auth/google/callback", login.GoogleCallback)
	}
	if login.DevLogin {
		log.Warn().Str("module", "adapters.http").Msg("dev login enabled")
		r.POST("/auth/dev", login.Dev)
	}
	r.GET("/logout", login.Logout)

	api := r.Group("/api")
	api.GET("/me", login.Me)
	api.GET("/stats", statsHandler(d.Orch))
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Orch.Rooms.List())
	})

	api.GET("/ws/signal", auth.RequireUser(d.Auth), func(c *gin.Context) {
		user, _ := auth.UserFrom(c)
		log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("ws signal endpoint hit")
		d.Signal.HandleSignal(ctx, c, user)
	})

	r.NoRoute(spaFallback(cfg.StaticPath, index))

	return r
}

// spaFallback serves files from the build directory and answers index.html
// for client-side routes. API and auth paths keep a JSON 404.
func spaFallback(root, index string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		method := c.Request.Method
		if (method != http.MethodGet && method != http.MethodHead) ||
			strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/auth/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+p)))
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
			c.File(name)
			return
		}
		c.File(index)
	}
}

func statsHandler(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms := o.Rooms.List()
		members := 0
		for _, room := range rooms {
			members += room.MemberCount
		}
		c.JSON(http.StatusOK, gin.H{
			"rooms":       len(rooms),
			"members":     members,
			"connections": o.Registry.Count(),
			"online":      o.Presence.Count(),
		})
	}
}
