package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
	"github.com/caffeine-addictt/greenbitessg-sub000/passkey"
)

const (
	EnvAccessSecret  = "AUTH_ACCESS_SECRET"
	EnvRefreshSecret = "AUTH_REFRESH_SECRET"
	EnvDatabaseDSN   = "AUTH_DATABASE_DSN"
	EnvSMTPPassword  = "AUTH_SMTP_PASSWORD"
)

// Defaults returns a development configuration. Secrets are left empty on
// purpose, Validate fails until they are provided.
func Defaults() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			Prefix:          "/v1/auth",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "file:greenbites.db?cache=shared",
		},
		Tokens: Tokens{
			Issuer: "greenbites",
		},
		Password: Password{
			Iterations: auth.DefaultPasswordIterations,
		},
		Mail: Mail{
			From:            "no-reply@greenbites.local",
			ActivationURL:   "http://localhost:3000/activate?token={{ token }}",
			VerificationURL: "http://localhost:3000/verify?token={{ token }}",
			SMTP: SMTP{
				Port: 587,
			},
		},
		Passkey: Passkey{
			RPID:          "localhost",
			RPDisplayName: "greenbites",
			Origins:       []string{"http://localhost:3000"},
			ChallengeTTL:  passkey.DefaultChallengeTTL,
		},
		Sweeper: Sweeper{
			Enabled:  true,
			Interval: auth.DefaultSweepInterval,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads defaults, overlays the YAML file at path when it is set and
// then the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := Parse(raw, cfg); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// Parse overlays YAML onto cfg. Unknown keys are rejected.
func Parse(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse config file")
	}
	return nil
}

// ApplyEnv overrides secrets from the environment
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAccessSecret); ok {
		cfg.Tokens.AccessSecret = v
	}
	if v, ok := lookup(EnvRefreshSecret); ok {
		cfg.Tokens.RefreshSecret = v
	}
	if v, ok := lookup(EnvDatabaseDSN); ok {
		cfg.Database.DSN = v
	}
	if v, ok := lookup(EnvSMTPPassword); ok {
		cfg.Mail.SMTP.Password = v
	}
}

// NewLogger builds the slog logger described by the log section
func (l Log) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.ToLower(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
