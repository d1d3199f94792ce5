// Package email delivers the transactional messages of the auth flows.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/lumenapp/accounts-api/internal/core/ports"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

var (
	_ ports.Mailer = (*SMTPMailer)(nil)
	_ ports.Mailer = (*LogMailer)(nil)
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS     string
	AppName string
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPMailer sends multipart (text + HTML) mail through an SMTP relay.
type SMTPMailer struct {
	from    string
	appName string
	send    sendFunc
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(tlsPolicy(cfg.TLS)),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &SMTPMailer{
		from:    cfg.From,
		appName: cfg.AppName,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, code string, validFor time.Duration) error {
	data := templateData{Code: code, ValidFor: humanDuration(validFor), AppName: m.appName}
	return m.deliver(ctx, to, "Your verification code", "otp", data)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetLink string, validFor time.Duration) error {
	data := templateData{Link: resetLink, ValidFor: humanDuration(validFor), AppName: m.appName}
	return m.deliver(ctx, to, "Reset your password", "reset", data)
}

func (m *SMTPMailer) deliver(ctx context.Context, to, subject, name string, data templateData) error {
	text, html, err := render(name, data)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("send %s mail: %w", name, err)
	}
	return nil
}

type templateData struct {
	Code     string
	Link     string
	ValidFor string
	AppName  string
}

func render(name string, data templateData) (string, string, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	return text.String(), html.String(), nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch strings.ToLower(s) {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 && d >= time.Hour {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

// LogMailer records deliveries in the log instead of sending them. It is used
// when no SMTP host is configured. Codes and links are never logged.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendOTP(_ context.Context, to, _ string, validFor time.Duration) error {
	m.log.Warn().Str("to", to).Dur("valid_for", validFor).Msg("smtp not configured, otp mail dropped")
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, _ string, validFor time.Duration) error {
	m.log.Warn().Str("to", to).Dur("valid_for", validFor).Msg("smtp not configured, reset mail dropped")
	return nil
}
