// Package notifications delivers outbound mail: automatic acknowledgements
// for new tickets and follow-up alerts for assigned agents.
package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/deskpilot-io/deskpilot/internal/config"
)

// EmailMessage is one outbound message. Text and HTML may both be set; the
// provider prefers HTML when present.
type EmailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

// Provider sends a message and returns the generated message id so callers
// can correlate replies back to it.
type Provider interface {
	Send(ctx context.Context, msg EmailMessage) (messageID string, err error)
}

// SMTPProvider delivers mail over SMTP with optional STARTTLS.
type SMTPProvider struct {
	cfg *config.NotificationsConfig
}

func NewSMTPProvider(cfg *config.NotificationsConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (s *SMTPProvider) Send(_ context.Context, msg EmailMessage) (string, error) {
	if s.cfg == nil || !s.cfg.Enabled {
		return "", nil
	}
	if len(msg.To) == 0 {
		return "", fmt.Errorf("no recipients specified")
	}

	fromHeader := s.cfg.From
	if fromHeader == "" {
		fromHeader = s.cfg.SMTP.User
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.SMTP.Host)

	var headers []string
	headers = append(headers, fmt.Sprintf("From: %s", fromHeader))
	headers = append(headers, fmt.Sprintf("To: %s", strings.Join(msg.To, ", ")))
	headers = append(headers, fmt.Sprintf("Subject: %s", msg.Subject))
	headers = append(headers, fmt.Sprintf("Message-ID: %s", messageID))
	for k, v := range msg.Headers {
		headers = append(headers, fmt.Sprintf("%s: %s", k, v))
	}

	body := msg.Text
	if msg.HTML != "" {
		headers = append(headers, "MIME-Version: 1.0")
		headers = append(headers, "Content-Type: text/html; charset=UTF-8")
		body = msg.HTML
	} else {
		headers = append(headers, "Content-Type: text/plain; charset=UTF-8")
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + body

	client, err := s.dial()
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return "", err
	}

	sender := fromHeader
	if sender == "" {
		sender = "noreply@localhost"
	}
	if err := client.Mail(sender); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return "", fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close data transfer: %w", err)
	}
	if err := client.Quit(); err != nil {
		return "", fmt.Errorf("failed to quit SMTP session: %w", err)
	}
	return messageID, nil
}

func (s *SMTPProvider) dial() (*smtp.Client, error) {
	addr := s.cfg.SMTP.Host + ":" + strconv.Itoa(s.cfg.SMTP.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if s.cfg.SMTP.UseTLS {
		tlsConfig := &tls.Config{ServerName: s.cfg.SMTP.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	return client, nil
}

func (s *SMTPProvider) authenticate(client *smtp.Client) error {
	if s.cfg.SMTP.User == "" || s.cfg.SMTP.Password == "" {
		return nil
	}
	auth := smtp.PlainAuth("", s.cfg.SMTP.User, s.cfg.SMTP.Password, s.cfg.SMTP.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return nil
}
