package notifications

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
	"github.com/deskpilot-io/deskpilot/internal/utils"
)

// defaultTemplate is the acknowledgement body used when no template file is
// configured. It is markdown; the rendered HTML goes out alongside the raw
// text.
const defaultTemplate = `Hello,

Thank you for contacting support. Your request has been received and assigned ticket **#{{.TicketNumber}}**.

An agent will get back to you as soon as possible. You can add information to this ticket by replying to this email.

[Response-ID: {{.ResponseID}}]

This is an automated response. Please do not reply directly to this email unless you want to add information to your ticket.
`

// AutoResponder sends the acknowledgement for a newly created ticket and
// records it so later replies can be correlated.
type AutoResponder struct {
	provider      Provider
	autoResponses repository.AutoResponseStore
	emailLog      repository.EmailLogStore
	tmpl          *template.Template
	logger        *log.Logger
	now           func() time.Time
}

type templateData struct {
	TicketNumber string
	ResponseID   string
	Subject      string
}

// AutoResponderOption configures an AutoResponder.
type AutoResponderOption func(*AutoResponder)

// WithAutoResponderLogger sets the diagnostic logger.
func WithAutoResponderLogger(logger *log.Logger) AutoResponderOption {
	return func(a *AutoResponder) { a.logger = logger }
}

// WithTemplateFile loads the acknowledgement template from a markdown file.
func WithTemplateFile(path string) AutoResponderOption {
	return func(a *AutoResponder) {
		raw, err := os.ReadFile(path)
		if err != nil {
			a.logf("autoresponder: failed to read template %s, using default: %v", path, err)
			return
		}
		tmpl, err := template.New("autoresponse").Parse(string(raw))
		if err != nil {
			a.logf("autoresponder: failed to parse template %s, using default: %v", path, err)
			return
		}
		a.tmpl = tmpl
	}
}

// NewAutoResponder builds an AutoResponder.
func NewAutoResponder(provider Provider, autoResponses repository.AutoResponseStore, emailLog repository.EmailLogStore, opts ...AutoResponderOption) *AutoResponder {
	a := &AutoResponder{
		provider:      provider,
		autoResponses: autoResponses,
		emailLog:      emailLog,
		tmpl:          template.Must(template.New("autoresponse").Parse(defaultTemplate)),
		logger:        log.New(io.Discard, "", 0),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Respond sends the acknowledgement for the ticket and persists the
// AutoResponse row plus an OUTBOUND audit entry.
func (a *AutoResponder) Respond(ctx context.Context, ticket *models.Ticket, recipient string) error {
	responseID := "ar_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	var buf strings.Builder
	if err := a.tmpl.Execute(&buf, templateData{
		TicketNumber: ticket.Number,
		ResponseID:   responseID,
		Subject:      ticket.Subject,
	}); err != nil {
		return fmt.Errorf("failed to render auto-response template: %w", err)
	}
	text := buf.String()
	html := utils.MarkdownToHTML(text)
	subject := fmt.Sprintf("Re: [Response-ID: %s] Your ticket #%s", responseID, ticket.Number)

	messageID, err := a.provider.Send(ctx, EmailMessage{
		To:      []string{recipient},
		Subject: subject,
		Text:    text,
		HTML:    html,
		Headers: map[string]string{"Auto-Submitted": "auto-replied"},
	})
	if err != nil {
		return fmt.Errorf("failed to send auto-response: %w", err)
	}

	now := a.now()
	ar := &models.AutoResponse{
		TicketID:   ticket.ID,
		ResponseID: responseID,
		ToEmail:    recipient,
		Subject:    subject,
		Body:       text,
		SentAt:     now,
		Status:     models.EmailStatusSent,
	}
	if messageID != "" {
		threadID := strings.Trim(messageID, "<>")
		ar.ThreadID = &threadID
	}
	if err := a.autoResponses.Insert(ctx, ar); err != nil {
		return fmt.Errorf("failed to record auto-response: %w", err)
	}

	entry := &models.EmailLogEntry{
		Direction:   models.DirectionOutbound,
		FromAddress: "",
		ToAddress:   recipient,
		Subject:     subject,
		Body:        text,
		HTMLBody:    &html,
		Status:      models.EmailStatusSent,
		TicketID:    &ticket.ID,
		ThreadID:    ar.ThreadID,
		SentAt:      &now,
	}
	if messageID != "" {
		entry.MessageID = &messageID
	}
	if _, err := a.emailLog.Insert(ctx, entry); err != nil {
		// The acknowledgement went out; only the audit row is missing.
		a.logf("autoresponder: failed to record outbound audit entry for ticket %d: %v", ticket.ID, err)
	}
	return nil
}

func (a *AutoResponder) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
