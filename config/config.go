// Package config holds the runtime settings of the auth service. Values
// come from defaults, then an optional YAML file, then the environment, and
// finally command line flags bound by the CLI.
package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Tokens   Tokens   `yaml:"tokens"`
	Password Password `yaml:"password"`
	Mail     Mail     `yaml:"mail"`
	Passkey  Passkey  `yaml:"passkey"`
	Sweeper  Sweeper  `yaml:"sweeper"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	Prefix          string        `yaml:"prefix"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Debug           bool          `yaml:"debug"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

func (d Database) GetDriver() string { return d.Driver }
func (d Database) GetDSN() string    { return d.DSN }
func (d Database) GetDebug() bool    { return d.Debug }

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "sqlite3", "postgres", "postgresql", "pgx")),
		validation.Field(&d.DSN, validation.Required),
	)
}

// Tokens holds the JWT secrets. They are usually set through
// AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET.
type Tokens struct {
	AccessSecret  string `yaml:"access_secret"`
	RefreshSecret string `yaml:"refresh_secret"`
	Issuer        string `yaml:"issuer"`
}

func (t Tokens) GetAccessSecret() string  { return t.AccessSecret }
func (t Tokens) GetRefreshSecret() string { return t.RefreshSecret }
func (t Tokens) GetIssuer() string        { return t.Issuer }

func (t Tokens) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.AccessSecret, validation.Required, validation.Length(32, 0)),
		validation.Field(&t.RefreshSecret,
			validation.Required,
			validation.Length(32, 0),
			validation.By(func(value any) error {
				if s, _ := value.(string); s != "" && s == t.AccessSecret {
					return errors.New("must differ from the access secret")
				}
				return nil
			}),
		),
	)
}

type Password struct {
	Iterations int `yaml:"iterations"`
}

func (p Password) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Iterations, validation.Min(300)),
	)
}

type Mail struct {
	From            string `yaml:"from"`
	ActivationURL   string `yaml:"activation_url"`
	VerificationURL string `yaml:"verification_url"`
	SMTP            SMTP   `yaml:"smtp"`
}

func (m Mail) GetFrom() string            { return m.From }
func (m Mail) GetActivationURL() string   { return m.ActivationURL }
func (m Mail) GetVerificationURL() string { return m.VerificationURL }

func (m Mail) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.From, validation.Required, is.Email),
		validation.Field(&m.ActivationURL, validation.Required),
		validation.Field(&m.VerificationURL, validation.Required),
		validation.Field(&m.SMTP),
	)
}

// SMTP is optional, without a host emails are written to the log
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (s SMTP) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Host, is.Host),
		validation.Field(&s.Port, validation.Min(1), validation.Max(65535), validation.By(func(value any) error {
			if port, _ := value.(int); s.Host != "" && port == 0 {
				return errors.New("is required when a host is set")
			}
			return nil
		})),
	)
}

type Passkey struct {
	RPID          string        `yaml:"rp_id"`
	RPDisplayName string        `yaml:"rp_display_name"`
	Origins       []string      `yaml:"origins"`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl"`
}

func (p Passkey) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RPID, validation.Required, is.Host),
		validation.Field(&p.RPDisplayName, validation.Required),
		validation.Field(&p.Origins, validation.Required, validation.By(allURLs)),
		validation.Field(&p.ChallengeTTL, validation.Min(time.Second)),
	)
}

func allURLs(value any) error {
	origins, _ := value.([]string)
	for _, o := range origins {
		if err := is.URL.Validate(o); err != nil || o == "" {
			return fmt.Errorf("%q must be a valid URL", o)
		}
	}
	return nil
}

type Sweeper struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func (s Sweeper) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Interval, validation.Min(time.Second)),
	)
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "text")),
	)
}

// Validate checks every section
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Tokens),
		validation.Field(&c.Password),
		validation.Field(&c.Mail),
		validation.Field(&c.Passkey),
		validation.Field(&c.Sweeper),
		validation.Field(&c.Log),
	)
}
