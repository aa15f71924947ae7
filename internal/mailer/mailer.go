// Package mailer delivers password-reset PINs.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Mailer sends a PIN to an email address.
type Mailer interface {
	SendPIN(ctx context.Context, to, code string, ttl time.Duration) error
}

// SMTPConfig holds outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain-text mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer validates cfg. Auth is skipped when Username is empty.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 587
	}
	m := &SMTPMailer{
		addr: net.JoinHostPort(host, fmt.Sprint(port)),
		from: strings.TrimSpace(cfg.From),
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return m, nil
}

func (m *SMTPMailer) SendPIN(ctx context.Context, to, code string, ttl time.Duration) error {
	if strings.ContainsAny(to, "\r\n") {
		return errors.New("invalid recipient")
	}
	msg := buildPINMessage(m.from, to, code, ttl)
	done := make(chan error, 1)
	go func() { done <- m.send(m.addr, m.auth, m.from, []string{to}, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send pin email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildPINMessage(from, to, code string, ttl time.Duration) []byte {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", "Código de recuperação de senha") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Seu código de recuperação é: %s\r\n", code)
	fmt.Fprintf(&b, "Ele expira em %d minutos.\r\n", minutes)
	return []byte(b.String())
}

// LogMailer writes PIN deliveries to the log instead of sending them.
// Intended for local runs.
type LogMailer struct {
	Logger *slog.Logger
	// IncludeCode logs the PIN itself.
	IncludeCode bool
}

func (l LogMailer) SendPIN(ctx context.Context, to, code string, ttl time.Duration) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"to", MaskEmail(to), "ttl_seconds", int(ttl.Seconds())}
	if l.IncludeCode {
		attrs = append(attrs, "code", code)
	}
	logger.InfoContext(ctx, "pin_email", attrs...)
	return nil
}

// MaskEmail hides most of the local part: "maria@x.com" -> "m***a@x.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	switch len(local) {
	case 0:
		return "***@" + domain
	case 1, 2:
		return local[:1] + "***@" + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + "@" + domain
	}
}
