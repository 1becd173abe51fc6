package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	router "github.com/dkeye/CodeSync/internal/adapters/http"
	wsignal "github.com/dkeye/CodeSync/internal/adapters/signal"
	"github.com/dkeye/CodeSync/internal/app"
	"github.com/dkeye/CodeSync/internal/app/orch"
	"github.com/dkeye/CodeSync/internal/auth"
	"github.com/dkeye/CodeSync/internal/config"
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/sessionstore"
	"github.com/dkeye/CodeSync/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)

	users, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer users.Close()

	sessStore, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		return err
	}
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewMembership(),
		Presence: core.NewPresence(),
		Policy:   policy,
	}

	ctl := wsignal.NewSignalWSController(o, wsignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
		JoinRate:   rate.Limit(cfg.JoinRate.PerSecond),
		JoinBurst:  cfg.JoinRate.Burst,

		AllowedOrigins: cfg.AllowedOrigins,
	})

	authn := &auth.SessionAuthenticator{Users: users}
	login := &auth.Handlers{Users: users, Auth: authn, DevLogin: cfg.Auth.DevLogin}
	if g := cfg.Auth.Google; g.Enabled() {
		login.OAuth = auth.NewGoogleConfig(g.ClientID, g.ClientSecret, g.RedirectURL)
	} else {
		log.Warn().Str("module", "main").Msg("google login disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}

	r := router.SetupRouter(ctx, router.Deps{
		Config:   cfg,
		Orch:     o,
		Signal:   ctl,
		Auth:     authn,
		Login:    login,
		Sessions: sessStore,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("CodeSync server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	secret := []byte(cfg.Session.Secret)
	if cfg.Session.Store != "redis" {
		return cookie.NewStore(secret), func() {}, nil
	}
	client, err := sessionstore.Dial(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("session store: %w", err)
	}
	log.Info().Str("module", "main").Msg("sessions in redis")
	return sessionstore.NewRedisStore(client, secret), func() { _ = client.Close() }, nil
}
