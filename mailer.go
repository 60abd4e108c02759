package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

// MailMessage is a rendered outbound email
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email. Failures are opaque to callers.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailerFunc adapts a function to the Mailer interface
type MailerFunc func(ctx context.Context, msg MailMessage) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg MailMessage) error {
	return f(ctx, msg)
}

// LogMailer writes emails to the logger instead of sending them
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(_ context.Context, msg MailMessage) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

// SMTPConfig holds the options of SMTPMailer
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain text email over SMTP with PLAIN auth
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	raw := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		msg.Body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, []string{msg.To}, []byte(raw))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

const activationTemplate = `Hi {{ username }},

Welcome to greenbites! Confirm your account by opening the link below.

{{ link }}

The link expires in {{ expires }}.`

const verificationTemplate = `Hi {{ username }},

Use the link below to verify your email address.

{{ link }}

The link expires in {{ expires }}.`

// Notifier renders and sends the account emails
type Notifier struct {
	mailer        Mailer
	cfg           MailConfig
	templates     map[TokenType]*pongo2.Template
	subjects      map[TokenType]string
	linkTemplates map[TokenType]*pongo2.Template
}

// NewNotifier compiles the email templates. Link URLs are pongo2 templates
// receiving {{ token }}.
func NewNotifier(mailer Mailer, cfg MailConfig) (*Notifier, error) {
	n := &Notifier{
		mailer: mailer,
		cfg:    cfg,
		templates: map[TokenType]*pongo2.Template{
			TokenTypeActivation:   pongo2.Must(pongo2.FromString(activationTemplate)),
			TokenTypeVerification: pongo2.Must(pongo2.FromString(verificationTemplate)),
		},
		subjects: map[TokenType]string{
			TokenTypeActivation:   "Activate your greenbites account",
			TokenTypeVerification: "Verify your greenbites email",
		},
		linkTemplates: map[TokenType]*pongo2.Template{},
	}

	links := map[TokenType]string{
		TokenTypeActivation:   cfg.GetActivationURL(),
		TokenTypeVerification: cfg.GetVerificationURL(),
	}

	for t, raw := range links {
		tpl, err := pongo2.FromString(raw)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid link template").
				WithMetadata(map[string]any{"token_type": string(t)})
		}
		n.linkTemplates[t] = tpl
	}

	return n, nil
}

// SendToken emails the link embedding token to user
func (n *Notifier) SendToken(ctx context.Context, user *User, token *ShortLivedToken) error {
	window, ok := TokenWindowFor(token.TokenType)
	if !ok {
		return goerrors.New("unknown token type", goerrors.CategoryBadInput)
	}

	link, err := n.linkTemplates[token.TokenType].Execute(pongo2.Context{
		"token": token.Token.String(),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render link")
	}

	body, err := n.templates[token.TokenType].Execute(pongo2.Context{
		"username": user.Username,
		"link":     link,
		"expires":  window.Max.String(),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email")
	}

	return n.mailer.Send(ctx, MailMessage{
		To:      user.Email,
		Subject: n.subjects[token.TokenType],
		Body:    body,
	})
}
