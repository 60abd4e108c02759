package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenKind identifies which secret and lifetime a JWT uses
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenType is the purpose of a short lived token
type TokenType string

const (
	TokenTypeActivation   TokenType = "activation"
	TokenTypeVerification TokenType = "verification"
)

// TokenWindow bounds the usable life of a short lived token. Min throttles
// resends, Max expires the token.
type TokenWindow struct {
	Min time.Duration
	Max time.Duration
}

var tokenWindows = map[TokenType]TokenWindow{
	TokenTypeActivation:   {Min: time.Minute, Max: 24 * time.Hour},
	TokenTypeVerification: {Min: time.Minute, Max: time.Hour},
}

// TokenWindowFor returns the validity window for the given token type
func TokenWindowFor(t TokenType) (TokenWindow, bool) {
	w, ok := tokenWindows[t]
	return w, ok
}

// Valid reports whether the token type is known
func (t TokenType) Valid() bool {
	_, ok := tokenWindows[t]
	return ok
}

// TokenConfig holds codec options
type TokenConfig interface {
	GetAccessSecret() string
	GetRefreshSecret() string
	GetIssuer() string
}

// MailConfig holds the outbound email options
type MailConfig interface {
	GetFrom() string
	GetActivationURL() string
	GetVerificationURL() string
}

// Clock is the time source used by stores and the codec
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns the wall clock in UTC
func SystemClock() Clock {
	return systemClock{}
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return systemClock{}
	}
	return c
}

// storeTime truncates to whole seconds so the stored value orders the same
// way on every backend.
func storeTime(c Clock) time.Time {
	return normalizeClock(c).Now().UTC().Truncate(time.Second)
}

type defLogger struct{}

// DefaultLogger returns the logger components use until WithLogger is called
func DefaultLogger() Logger {
	return defLogger{}
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// SlogLogger adapts a *slog.Logger to Logger
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l, falling back to slog.Default
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l.With("component", "auth")}
}

func (s *SlogLogger) Debug(format string, args ...any) {
	s.log(slog.LevelDebug, format, args...)
}

func (s *SlogLogger) Info(format string, args ...any) {
	s.log(slog.LevelInfo, format, args...)
}

func (s *SlogLogger) Warn(format string, args ...any) {
	s.log(slog.LevelWarn, format, args...)
}

func (s *SlogLogger) Error(format string, args ...any) {
	s.log(slog.LevelError, format, args...)
}

// Slog exposes the wrapped logger for structured attributes
func (s *SlogLogger) Slog() *slog.Logger {
	return s.l
}

func (s *SlogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}
