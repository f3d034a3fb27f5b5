// Package postmaster turns classified inbound messages into ticket state:
// new tickets, reply comments, and follow-up linkage, plus the orchestrating
// ingestion loop.
package postmaster

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/deskpilot-io/deskpilot/internal/assignment"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/classifier"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
	"github.com/deskpilot-io/deskpilot/internal/metrics"
	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
	"github.com/deskpilot-io/deskpilot/internal/utils"
)

// Assigner decides ticket ownership for newly created tickets.
type Assigner interface {
	AssignTicket(ctx context.Context, ticket *models.Ticket) assignment.Result
}

// Responder sends the acknowledgement for a new ticket.
type Responder interface {
	Respond(ctx context.Context, ticket *models.Ticket, recipient string) error
}

// Notifier alerts the assigned agent about a follow-up.
type Notifier interface {
	NotifyFollowup(ctx context.Context, ticket *models.Ticket, from, excerpt string) error
}

// Status-changing keyword vocabulary for follow-ups. Categories are checked
// in order; the first category with a match wins. Matching is by substring,
// so reopen phrases must not contain any resolved/closed keyword ("not
// fixed" would match "fixed" first and never reopen).
var (
	resolvedKeywords = []string{"resolved", "fixed", "solved"}
	closedKeywords   = []string{"closed", "finished"}
	reopenKeywords   = []string{"reopen", "still broken", "not working"}
)

// Router applies a classification to the ticket store.
type Router struct {
	tickets     repository.TicketStore
	comments    repository.CommentStore
	attachments repository.AttachmentStore
	lookup      repository.LookupStore
	emailLog    repository.EmailLogStore
	followups   repository.FollowupStore

	assigner  Assigner
	responder Responder
	notifier  Notifier

	sanitizer *utils.HTMLSanitizer
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the diagnostic logger.
func WithRouterLogger(logger *log.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// WithAssigner enables auto-assignment for new tickets.
func WithAssigner(a Assigner) RouterOption {
	return func(r *Router) { r.assigner = a }
}

// WithResponder enables acknowledgements for new tickets.
func WithResponder(rsp Responder) RouterOption {
	return func(r *Router) { r.responder = rsp }
}

// WithNotifier enables follow-up alerts to assigned agents.
func WithNotifier(n Notifier) RouterOption {
	return func(r *Router) { r.notifier = n }
}

// WithRouterMetrics enables assignment-outcome instrumentation.
func WithRouterMetrics(m *metrics.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// NewRouter builds a Router. Assignment, acknowledgement, and notification
// collaborators are optional; routing works without them.
func NewRouter(
	tickets repository.TicketStore,
	comments repository.CommentStore,
	attachments repository.AttachmentStore,
	lookup repository.LookupStore,
	emailLog repository.EmailLogStore,
	followups repository.FollowupStore,
	opts ...RouterOption,
) *Router {
	r := &Router{
		tickets:     tickets,
		comments:    comments,
		attachments: attachments,
		lookup:      lookup,
		emailLog:    emailLog,
		followups:   followups,
		sanitizer:   utils.NewHTMLSanitizer(),
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route applies the classification. It returns the ticket the message landed
// on. Errors here are routing errors; the caller marks the audit entry ERROR.
func (r *Router) Route(ctx context.Context, email *parser.ParsedEmail, c classifier.Classification, logEntry *models.EmailLogEntry) (*models.Ticket, error) {
	switch c.Type {
	case models.EmailTypeNew:
		return r.routeNew(ctx, email, logEntry)
	case models.EmailTypeReply:
		return r.routeReply(ctx, email, c.TicketID, logEntry)
	case models.EmailTypeFollowup:
		return r.routeFollowup(ctx, email, c, logEntry)
	default:
		return nil, fmt.Errorf("unknown classification %q", c.Type)
	}
}

func (r *Router) routeNew(ctx context.Context, email *parser.ParsedEmail, logEntry *models.EmailLogEntry) (*models.Ticket, error) {
	category, err := r.lookup.DefaultCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("no default category configured: %w", err)
	}
	priority, err := r.lookup.DefaultPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("no default priority configured: %w", err)
	}
	status, err := r.lookup.DefaultStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("no default status configured: %w", err)
	}

	body, htmlBody := r.bodies(email)
	ticket := &models.Ticket{
		Subject:        utils.FilterUnicode(email.Subject),
		Body:           body,
		CategoryID:     category.ID,
		PriorityID:     priority.ID,
		StatusID:       status.ID,
		SubmitterEmail: email.SenderAddress(),
		PriorityName:   priority.Name,
	}
	if htmlBody != "" {
		ticket.HTMLBody = &htmlBody
	}
	if err := r.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	r.storeAttachments(ctx, email, ticket.ID, nil)

	if err := r.emailLog.LinkTicket(ctx, logEntry.ID, ticket.ID, models.EmailTypeNew, models.EmailStatusProcessed); err != nil {
		return nil, fmt.Errorf("failed to link audit entry to ticket %d: %w", ticket.ID, err)
	}

	// Assignment and acknowledgement are isolated side effects. The ticket
	// and audit entry above stay committed whatever happens here.
	if r.assigner != nil {
		result := r.assigner.AssignTicket(ctx, ticket)
		outcome := "assigned"
		switch {
		case result.Err != nil:
			outcome = "error"
			r.logger.Printf("postmaster: assignment failed for ticket %s: %v", ticket.Number, result.Err)
		case !result.Success:
			outcome = "unassigned"
			r.logger.Printf("postmaster: ticket %s left unassigned: %s", ticket.Number, result.Reason)
		default:
			r.logger.Printf("postmaster: ticket %s assigned to agent %d via %s", ticket.Number, result.AssignedTo, result.Method)
		}
		if r.metrics != nil {
			method := result.Method
			if method == "" {
				method = "none"
			}
			r.metrics.Assignments.WithLabelValues(method, outcome).Inc()
		}
	}
	if r.responder != nil && ticket.SubmitterEmail != "" {
		if err := r.responder.Respond(ctx, ticket, ticket.SubmitterEmail); err != nil {
			r.logger.Printf("postmaster: auto-response failed for ticket %s: %v", ticket.Number, err)
		}
	}
	return ticket, nil
}

func (r *Router) routeReply(ctx context.Context, email *parser.ParsedEmail, ticketID int, logEntry *models.EmailLogEntry) (*models.Ticket, error) {
	ticket, err := r.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %d for reply: %w", ticketID, err)
	}
	body := email.TextBody
	if body == "" && email.HTMLBody != "" {
		body = strings.TrimSpace(utils.StripHTML(email.HTMLBody))
	}
	comment, err := r.appendComment(ctx, email, ticket, body)
	if err != nil {
		return nil, err
	}
	r.storeAttachments(ctx, email, ticket.ID, &comment.ID)

	if err := r.emailLog.LinkTicket(ctx, logEntry.ID, ticket.ID, models.EmailTypeReply, models.EmailStatusProcessed); err != nil {
		return nil, fmt.Errorf("failed to link audit entry to ticket %d: %w", ticket.ID, err)
	}
	return ticket, nil
}

func (r *Router) routeFollowup(ctx context.Context, email *parser.ParsedEmail, c classifier.Classification, logEntry *models.EmailLogEntry) (*models.Ticket, error) {
	ticket, err := r.tickets.GetByID(ctx, c.TicketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %d for follow-up: %w", c.TicketID, err)
	}

	content := followupContent(email)
	comment, err := r.appendComment(ctx, email, ticket, content)
	if err != nil {
		return nil, err
	}
	r.storeAttachments(ctx, email, ticket.ID, &comment.ID)

	if c.AutoResponse != nil {
		followup := &models.EmailFollowup{
			AutoResponseID:  c.AutoResponse.ID,
			TicketID:        ticket.ID,
			OriginalEmailID: logEntry.ID,
			Content:         content,
			Status:          models.FollowupStatusProcessed,
		}
		if err := r.followups.Insert(ctx, followup); err != nil {
			return nil, fmt.Errorf("failed to record follow-up linkage: %w", err)
		}
	}

	r.applyStatusKeywords(ctx, ticket, content)

	if r.notifier != nil {
		if err := r.notifier.NotifyFollowup(ctx, ticket, email.SenderAddress(), content); err != nil {
			r.logger.Printf("postmaster: follow-up notification failed for ticket %s: %v", ticket.Number, err)
		}
	}

	if err := r.emailLog.LinkTicket(ctx, logEntry.ID, ticket.ID, models.EmailTypeFollowup, models.EmailStatusProcessed); err != nil {
		return nil, fmt.Errorf("failed to link audit entry to ticket %d: %w", ticket.ID, err)
	}
	return ticket, nil
}

func (r *Router) appendComment(ctx context.Context, email *parser.ParsedEmail, ticket *models.Ticket, body string) (*models.Comment, error) {
	comment := &models.Comment{
		TicketID:    ticket.ID,
		Body:        utils.FilterUnicode(body),
		AuthorEmail: email.SenderAddress(),
		IsInternal:  false,
	}
	if email.HTMLBody != "" {
		html := r.sanitizer.Sanitize(r.inlineImages(email))
		comment.HTMLBody = &html
	}
	if err := r.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to append comment to ticket %d: %w", ticket.ID, err)
	}
	return comment, nil
}

func (r *Router) storeAttachments(ctx context.Context, email *parser.ParsedEmail, ticketID int, commentID *int) {
	for _, a := range email.TrueAttachments() {
		att := &models.Attachment{
			TicketID:    ticketID,
			CommentID:   commentID,
			Filename:    a.Filename,
			ContentType: a.MimeType,
			SizeBytes:   a.SizeBytes,
			Content:     a.Content,
		}
		if err := r.attachments.Create(ctx, att); err != nil {
			r.logger.Printf("postmaster: failed to store attachment %s for ticket %d: %v", a.Filename, ticketID, err)
		}
	}
}

// bodies picks the content stored on a new ticket: plain text always, plus
// sanitized HTML with cid: references resolved to data URIs when present.
func (r *Router) bodies(email *parser.ParsedEmail) (text, html string) {
	text = utils.FilterUnicode(email.TextBody)
	if text == "" && email.HTMLBody != "" {
		text = strings.TrimSpace(utils.StripHTML(email.HTMLBody))
	}
	if email.HTMLBody != "" {
		html = r.sanitizer.Sanitize(r.inlineImages(email))
	}
	return text, html
}

// inlineImages rewrites cid: references in the HTML body to data URIs built
// from the matching inline parts, so the stored body renders standalone.
func (r *Router) inlineImages(email *parser.ParsedEmail) string {
	html := email.HTMLBody
	for _, part := range email.InlineParts() {
		if part.ContentID == "" || len(part.Content) == 0 {
			continue
		}
		dataURI := fmt.Sprintf("data:%s;base64,%s", part.MimeType, base64.StdEncoding.EncodeToString(part.Content))
		html = strings.ReplaceAll(html, "cid:"+part.ContentID, dataURI)
	}
	return html
}

// applyStatusKeywords scans the follow-up content for status-changing
// vocabulary. Failures only log; a bad status lookup must not fail the
// follow-up.
func (r *Router) applyStatusKeywords(ctx context.Context, ticket *models.Ticket, content string) {
	lower := strings.ToLower(content)
	match := func(keywords []string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}

	var kind, note string
	switch {
	case match(resolvedKeywords):
		kind, note = models.StatusKindResolved, "marked resolved by submitter follow-up"
	case match(closedKeywords):
		kind, note = models.StatusKindClosed, "closed by submitter follow-up"
	case match(reopenKeywords):
		kind, note = models.StatusKindOpen, "reopened by submitter follow-up"
	default:
		return
	}

	status, err := r.lookup.StatusByKind(ctx, kind)
	if err != nil {
		r.logger.Printf("postmaster: no %s status configured: %v", kind, err)
		return
	}
	if ticket.StatusID == status.ID {
		return
	}
	if err := r.tickets.UpdateStatus(ctx, ticket.ID, status.ID, note); err != nil {
		r.logger.Printf("postmaster: failed to move ticket %s to %s: %v", ticket.Number, kind, err)
		return
	}
	ticket.StatusID = status.ID
}

func followupContent(email *parser.ParsedEmail) string {
	body := email.TextBody
	if body == "" {
		body = utils.StripHTML(email.HTMLBody)
	}
	return utils.StripQuotedReply(body)
}
