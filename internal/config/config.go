package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr             string
	DatabaseDriver       string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	LogLevel  string // debug|info|warn|error
	LogFormat string // json|text

	SaveDebounce       time.Duration
	SaveIndicatorDelay time.Duration
	EditIdleTimeout    time.Duration
	ShutdownTimeout    time.Duration

	SeedOnStart bool
}

var ErrMissingDatabaseURL = errors.New("missing env: DATABASE_URL")

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("database_driver", "postgres")
	v.SetDefault("cors_allow_credentials", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("save_debounce", "1s")
	v.SetDefault("save_indicator_delay", "300ms")
	v.SetDefault("edit_idle_timeout", "30m")
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("seed_on_start", false)

	cfg := Config{
		HTTPAddr:             strings.TrimSpace(v.GetString("http_addr")),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(v.GetString("database_driver"))),
		DatabaseURL:          strings.TrimSpace(v.GetString("database_url")),
		CORSAllowCredentials: v.GetBool("cors_allow_credentials"),
		LogLevel:             strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:            strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		SaveDebounce:         v.GetDuration("save_debounce"),
		SaveIndicatorDelay:   v.GetDuration("save_indicator_delay"),
		EditIdleTimeout:      v.GetDuration("edit_idle_timeout"),
		ShutdownTimeout:      v.GetDuration("shutdown_timeout"),
		SeedOnStart:          v.GetBool("seed_on_start"),
	}

	for _, o := range strings.Split(v.GetString("cors_allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, ErrMissingDatabaseURL
	}
	return cfg, nil
}
