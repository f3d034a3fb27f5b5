package postmaster

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/config"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/classifier"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/connector"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/filters"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/mailsync"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
	"github.com/deskpilot-io/deskpilot/internal/metrics"
	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

// Summary is the externally observable result of one ingestion run.
type Summary struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Replies int `json:"replies"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Service is the ingestion orchestrator: one run opens a mailbox session,
// fetches the unseen set, and processes each message independently.
type Service struct {
	mailbox    connector.Mailbox
	mailCfg    config.MailConfig
	parser     *parser.Parser
	chain      filters.Chain
	emailLog   repository.EmailLogStore
	classifier *classifier.Classifier
	router     *Router
	metrics    *metrics.Metrics
	logger     *log.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the diagnostic logger.
func WithServiceLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithFilterChain replaces the default admission chain.
func WithFilterChain(chain filters.Chain) ServiceOption {
	return func(s *Service) { s.chain = chain }
}

// NewService wires the orchestrator.
func NewService(
	mailbox connector.Mailbox,
	mailCfg config.MailConfig,
	emailLog repository.EmailLogStore,
	cls *classifier.Classifier,
	router *Router,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		mailbox:    mailbox,
		mailCfg:    mailCfg,
		parser:     parser.New(),
		chain:      filters.DefaultChain(),
		emailLog:   emailLog,
		classifier: cls,
		router:     router,
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce executes one ingestion pass. The summary carries best-effort
// counts even when the pass aborts early; the session is always closed.
func (s *Service) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.IngestionDuration.Observe(time.Since(started).Seconds())
		}
	}()

	if err := s.mailbox.Connect(ctx); err != nil {
		return summary, fmt.Errorf("failed to connect to mailbox: %w", err)
	}
	defer func() {
		if err := s.mailbox.Disconnect(); err != nil {
			s.logger.Printf("postmaster: disconnect failed: %v", err)
		}
	}()

	if err := s.mailbox.OpenFolder(ctx, s.mailCfg.SourceFolder); err != nil {
		return summary, fmt.Errorf("failed to open folder %s: %w", s.mailCfg.SourceFolder, err)
	}

	messages, err := s.mailbox.FetchUnseen(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch unseen messages: %w", err)
	}
	summary.Fetched = len(messages)
	if s.metrics != nil {
		s.metrics.MessagesFetched.Add(float64(len(messages)))
	}
	s.logger.Printf("postmaster: fetched %d unseen messages from %s", len(messages), s.mailCfg.SourceFolder)

	sync := mailsync.New(s.mailbox, s.mailCfg.SourceFolder, s.logger)
	for _, msg := range messages {
		s.processOne(ctx, msg, sync, &summary)
	}
	return summary, nil
}

// processOne handles a single message. Panics and errors are contained here;
// one bad message never aborts the batch.
func (s *Service) processOne(ctx context.Context, msg connector.RawMessage, sync *mailsync.Synchronizer, summary *Summary) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("postmaster: panic processing message uid %d: %v", msg.UID, r)
			summary.Errors++
			if s.metrics != nil {
				s.metrics.MessagesErrored.Inc()
			}
			sync.Finalize(ctx, msg.UID, s.mailCfg.ErrorFolder)
		}
	}()

	email, err := s.parser.Parse(msg.Raw, msg.ReceivedAt)
	if err != nil {
		s.recordUnparsed(ctx, msg, err)
		summary.Errors++
		if s.metrics != nil {
			s.metrics.MessagesErrored.Inc()
		}
		sync.Finalize(ctx, msg.UID, s.mailCfg.ErrorFolder)
		return
	}

	if err := s.chain.Run(ctx, &filters.MessageContext{Email: email, Policy: s.mailCfg.Filter}); err != nil {
		rejection, ok := filters.AsRejection(err)
		if !ok {
			rejection = &filters.RejectionError{Rule: "filter", Reason: err.Error()}
		}
		s.recordRejection(ctx, email, msg, rejection)
		summary.Errors++
		if s.metrics != nil {
			s.metrics.MessagesRejected.WithLabelValues(rejection.Rule).Inc()
		}
		sync.Finalize(ctx, msg.UID, s.mailCfg.ErrorFolder)
		return
	}

	entry, created, err := s.emailLog.Record(ctx, s.buildEntry(email, msg, models.EmailStatusProcessing, nil))
	if err != nil {
		s.logger.Printf("postmaster: failed to record message %s: %v", email.MessageID, err)
		summary.Errors++
		if s.metrics != nil {
			s.metrics.MessagesErrored.Inc()
		}
		sync.Finalize(ctx, msg.UID, s.mailCfg.ErrorFolder)
		return
	}
	if !created {
		s.logger.Printf("postmaster: message %s already processed, skipping", email.MessageID)
		summary.Skipped++
		if s.metrics != nil {
			s.metrics.MessagesSkipped.Inc()
		}
		sync.Finalize(ctx, msg.UID, s.mailCfg.SuccessFolder)
		return
	}

	classification := s.classifier.Classify(ctx, email)
	ticket, err := s.router.Route(ctx, email, classification, entry)
	if err != nil {
		s.logger.Printf("postmaster: routing failed for message %s: %v", email.MessageID, err)
		if markErr := s.emailLog.MarkError(ctx, entry.ID, err.Error()); markErr != nil {
			s.logger.Printf("postmaster: failed to mark entry %d as error: %v", entry.ID, markErr)
		}
		summary.Errors++
		if s.metrics != nil {
			s.metrics.MessagesErrored.Inc()
		}
		sync.Finalize(ctx, msg.UID, s.mailCfg.ErrorFolder)
		return
	}

	switch classification.Type {
	case models.EmailTypeNew:
		summary.Created++
		if s.metrics != nil {
			s.metrics.TicketsCreated.Inc()
		}
	default:
		summary.Replies++
		if s.metrics != nil {
			s.metrics.CommentsAppended.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.MessagesProcessed.WithLabelValues(classification.Type).Inc()
	}
	s.logger.Printf("postmaster: message %s routed as %s to ticket %s", email.MessageID, classification.Type, ticket.Number)
	sync.Finalize(ctx, msg.UID, s.mailCfg.SuccessFolder)
}

// recordUnparsed writes the ERROR audit entry for a message that could not
// be parsed. The entry carries no message id so repeated malformed messages
// never collide on the unique constraint.
func (s *Service) recordUnparsed(ctx context.Context, msg connector.RawMessage, parseErr error) {
	reason := fmt.Sprintf("failed to parse message: %v", parseErr)
	entry := &models.EmailLogEntry{
		Direction:  models.DirectionInbound,
		Subject:    "(unparsable message)",
		Status:     models.EmailStatusError,
		Error:      &reason,
		ReceivedAt: &msg.ReceivedAt,
	}
	if _, err := s.emailLog.InsertUnparsed(ctx, entry); err != nil {
		s.logger.Printf("postmaster: failed to record unparsable message uid %d: %v", msg.UID, err)
	}
	s.logger.Printf("postmaster: message uid %d treated as %s: %v", msg.UID, parser.UnknownMessageID, parseErr)
}

// recordRejection writes the ERROR audit entry for a filtered message so
// operators retain visibility into suppressed mail.
func (s *Service) recordRejection(ctx context.Context, email *parser.ParsedEmail, msg connector.RawMessage, rejection *filters.RejectionError) {
	entry := s.buildEntry(email, msg, models.EmailStatusError, &rejection.Reason)
	if _, _, err := s.emailLog.Record(ctx, entry); err != nil {
		s.logger.Printf("postmaster: failed to record rejected message %s: %v", email.MessageID, err)
	}
	s.logger.Printf("postmaster: message %s rejected by %s: %s", email.MessageID, rejection.Rule, rejection.Reason)
}

func (s *Service) buildEntry(email *parser.ParsedEmail, msg connector.RawMessage, status string, errText *string) *models.EmailLogEntry {
	entry := &models.EmailLogEntry{
		Direction:   models.DirectionInbound,
		FromAddress: email.From,
		ToAddress:   email.To,
		Subject:     email.Subject,
		Body:        email.TextBody,
		Status:      status,
		Error:       errText,
		ReceivedAt:  &msg.ReceivedAt,
	}
	if email.MessageID != "" && email.MessageID != parser.UnknownMessageID {
		id := email.MessageID
		entry.MessageID = &id
	}
	if email.CC != "" {
		cc := email.CC
		entry.CCAddress = &cc
	}
	if email.BCC != "" {
		bcc := email.BCC
		entry.BCCAddress = &bcc
	}
	if email.HTMLBody != "" {
		html := email.HTMLBody
		entry.HTMLBody = &html
	}
	if email.ThreadID != "" {
		tid := email.ThreadID
		entry.ThreadID = &tid
	}
	if email.InReplyTo != "" {
		irt := email.InReplyTo
		entry.InReplyTo = &irt
	}
	if len(email.References) > 0 {
		refs := strings.Join(email.References, " ")
		entry.References = &refs
	}
	return entry
}
