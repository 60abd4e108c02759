package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeine-addictt/greenbitessg-sub000/config"
)

const (
	accessSecret  = "access-secret-access-secret-0001"
	refreshSecret = "refresh-secret-refresh-secret-01"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Tokens.AccessSecret = accessSecret
	cfg.Tokens.RefreshSecret = refreshSecret
	return cfg
}

func TestDefaultsNeedSecrets(t *testing.T) {
	err := config.Defaults().Validate()
	require.Error(t, err)

	errs, ok := err.(validation.Errors)
	require.True(t, ok)
	assert.Contains(t, errs, "tokens")
}

func TestValidConfigPasses(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestSecretsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.Tokens.RefreshSecret = cfg.Tokens.AccessSecret

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidateRejectsBadSections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{
			name:   "unknown driver",
			mutate: func(c *config.Config) { c.Database.Driver = "mysql" },
			key:    "database",
		},
		{
			name:   "low iterations",
			mutate: func(c *config.Config) { c.Password.Iterations = 10 },
			key:    "password",
		},
		{
			name:   "bad origin",
			mutate: func(c *config.Config) { c.Passkey.Origins = []string{"not a url"} },
			key:    "passkey",
		},
		{
			name:   "smtp host without port",
			mutate: func(c *config.Config) { c.Mail.SMTP = config.SMTP{Host: "smtp.example.com"} },
			key:    "mail",
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Log.Level = "trace" },
			key:    "log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			errs, ok := err.(validation.Errors)
			require.True(t, ok)
			assert.Contains(t, errs, tt.key)
		})
	}
}

func TestParseOverlaysYAML(t *testing.T) {
	cfg := config.Defaults()

	err := config.Parse([]byte(strings.TrimSpace(`
server:
  addr: ":9090"
database:
  driver: postgres
  dsn: postgres://localhost/greenbites
sweeper:
  interval: 15m
passkey:
  challenge_ttl: 2m
`)), cfg)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.GetDriver())
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Passkey.ChallengeTTL)
	// untouched keys keep their defaults
	assert.Equal(t, "/v1/auth", cfg.Server.Prefix)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	err := config.Parse([]byte("server:\n  adress: \":1\"\n"), config.Defaults())
	require.Error(t, err)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokens:\n  issuer: tests\n"), 0o600))

	t.Setenv(config.EnvAccessSecret, accessSecret)
	t.Setenv(config.EnvRefreshSecret, refreshSecret)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tests", cfg.Tokens.GetIssuer())
	assert.Equal(t, accessSecret, cfg.Tokens.GetAccessSecret())
	assert.Equal(t, refreshSecret, cfg.Tokens.GetRefreshSecret())
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
