package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const devSecret = "codesync-dev-secret-change-me-please"

type Config struct {
	Mode           string         `mapstructure:"mode"`
	Port           int            `mapstructure:"port"`
	StaticPath     string         `mapstructure:"static_path"`
	LogLevel       string         `mapstructure:"log_level"`
	ReadLimit      int64          `mapstructure:"read_limit"`
	PingPeriod     time.Duration  `mapstructure:"ping_period"`
	PongWait       time.Duration  `mapstructure:"pong_wait"`
	WriteWait      time.Duration  `mapstructure:"write_wait"`
	SendBuffer     int            `mapstructure:"send_buffer"`
	Backpressure   string         `mapstructure:"backpressure"`
	// AllowedOrigins are extra browser origins allowed to open the socket.
	AllowedOrigins []string       `mapstructure:"allowed_origins"`
	JoinRate       RateConfig     `mapstructure:"join_rate"`
	Session        SessionConfig  `mapstructure:"session"`
	Redis          RedisConfig    `mapstructure:"redis"`
	Database       DatabaseConfig `mapstructure:"database"`
	Auth           AuthConfig     `mapstructure:"auth"`
}

type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type SessionConfig struct {
	Name   string `mapstructure:"name"`
	Secret string `mapstructure:"secret"`
	// Store is "cookie" or "redis".
	Store  string `mapstructure:"store"`
	MaxAge int    `mapstructure:"max_age"`
	Secure bool   `mapstructure:"secure"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	DevLogin bool         `mapstructure:"dev_login"`
	Google   GoogleConfig `mapstructure:"google"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// envBindings maps config keys to the environment variable names the
// deployment already uses.
var envBindings = map[string]string{
	"mode":                      "MODE",
	"port":                      "PORT",
	"log_level":                 "LOG_LEVEL",
	"allowed_origins":           "ALLOWED_ORIGINS",
	"session.secret":            "SESSION_SECRET",
	"session.store":             "SESSION_STORE",
	"redis.url":                 "REDIS_URL",
	"database.driver":           "DATABASE_DRIVER",
	"database.dsn":              "DATABASE_URL",
	"auth.dev_login":            "DEV_LOGIN",
	"auth.google.client_id":     "GOOGLE_CLIENT_ID",
	"auth.google.client_secret": "GOOGLE_CLIENT_SECRET",
	"auth.google.redirect_url":  "GOOGLE_REDIRECT_URL",
}

// Load resolves configuration from, lowest to highest priority: defaults,
// the YAML file, environment (a .env file is loaded first) and flags.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	flags := pflag.NewFlagSet("codesync", pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.Int("port", 5000, "HTTP listen port")
	flags.String("mode", "release", "gin mode: debug or release")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CODESYNC")
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env, "CODESYNC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	for _, name := range []string{"port", "mode"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	fileName, _ := flags.GetString("config")
	explicit := fileName != ""
	if !explicit {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		if explicit {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Str("db", cfg.Database.Driver).Str("sessions", cfg.Session.Store).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("static_path", "./build")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 0)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("backpressure", "drop")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("join_rate.per_second", 2.0)
	v.SetDefault("join_rate.burst", 10)
	v.SetDefault("session.name", "codesync.sid")
	v.SetDefault("session.secret", devSecret)
	v.SetDefault("session.store", "cookie")
	v.SetDefault("session.max_age", 86400)
	v.SetDefault("session.secure", false)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/codesync.db")
	v.SetDefault("auth.dev_login", false)
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.client_secret", "")
	v.SetDefault("auth.google.redirect_url", "/auth/google/callback")
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Mode != "debug" && c.Mode != "release" && c.Mode != "test" {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.Mode == "release" && c.Session.Secret == devSecret {
		return errors.New("session.secret (SESSION_SECRET) must be set in release mode")
	}
	switch c.Session.Store {
	case "cookie", "redis":
	default:
		return fmt.Errorf("invalid session.store %q", c.Session.Store)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)", c.PingPeriod, c.PongWait)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("invalid send_buffer %d", c.SendBuffer)
	}
	return nil
}
