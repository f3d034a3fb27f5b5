package classifier

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

// Confidence values per heuristic. Ordering in the chain matters more than
// the absolute numbers; they are recorded for diagnostics.
const (
	confidenceToken          = 0.9
	confidenceThreadID       = 0.8
	confidenceInReplyTo      = 0.7
	confidenceReferences     = 0.6
	confidenceSubjectPattern = 0.5
	confidenceReplyPhrase    = 0.4
)

// Recency windows for the textual heuristics. Old acknowledgements must not
// claim unrelated mail.
const (
	subjectPatternWindow = 7 * 24 * time.Hour
	replyPhraseWindow    = 3 * 24 * time.Hour
)

var (
	responseIDBracket = regexp.MustCompile(`\[(?:Response-ID|Ref):\s*([^\]\s]+)\s*\]`)
	responseIDToken   = regexp.MustCompile(`\bar_[A-Za-z0-9][A-Za-z0-9-]*\b`)
	ticketNumberMark  = regexp.MustCompile(`#(\d+)`)
	replySubject      = regexp.MustCompile(`(?i)^\s*(re|aw|sv|antw?)\s*:.*\b(ticket|support|request|case)\b`)
)

var replyPhrases = []string{
	"thank you for your response",
	"thanks for your response",
	"thank you for contacting",
	"regarding your support ticket",
	"regarding my ticket",
	"in response to your email",
	"following up on my ticket",
}

// TokenMatcher looks for an embedded response-tracking token in the subject
// or body and resolves it against stored auto-responses.
type TokenMatcher struct {
	AutoResponses repository.AutoResponseStore
}

func (m *TokenMatcher) Name() string { return MethodResponseToken }

func (m *TokenMatcher) Match(ctx context.Context, email *parser.ParsedEmail) (*Classification, error) {
	for _, token := range extractResponseTokens(email.Subject + "\n" + email.TextBody + "\n" + email.HTMLBody) {
		ar, err := m.AutoResponses.FindByResponseID(ctx, token)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return followup(ar, confidenceToken), nil
	}
	return nil, nil
}

func extractResponseTokens(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	for _, m := range responseIDBracket.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range responseIDToken.FindAllString(text, -1) {
		add(m)
	}
	return tokens
}

// ThreadHeaderMatcher correlates threading headers against stored
// auto-responses. Confidence reflects which header matched: the explicit
// thread id is strongest, a token buried in References weakest.
type ThreadHeaderMatcher struct {
	AutoResponses repository.AutoResponseStore
}

func (m *ThreadHeaderMatcher) Name() string { return MethodThreadHeader }

func (m *ThreadHeaderMatcher) Match(ctx context.Context, email *parser.ParsedEmail) (*Classification, error) {
	type probe struct {
		token      string
		confidence float64
	}
	probes := []probe{{email.ThreadID, confidenceThreadID}, {email.InReplyTo, confidenceInReplyTo}}
	for _, ref := range email.References {
		probes = append(probes, probe{ref, confidenceReferences})
	}
	for _, p := range probes {
		token := strings.Trim(strings.TrimSpace(p.token), "<>")
		if token == "" {
			continue
		}
		ar, err := m.AutoResponses.FindByThreadToken(ctx, token)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return followup(ar, p.confidence), nil
	}
	return nil, nil
}

// SubjectPatternMatcher pairs a reply-looking subject with a recent
// acknowledgement sent to the same sender.
type SubjectPatternMatcher struct {
	AutoResponses repository.AutoResponseStore
}

func (m *SubjectPatternMatcher) Name() string { return MethodSubjectPattern }

func (m *SubjectPatternMatcher) Match(ctx context.Context, email *parser.ParsedEmail) (*Classification, error) {
	if !replySubject.MatchString(email.Subject) {
		return nil, nil
	}
	return recentFollowup(ctx, m.AutoResponses, email, subjectPatternWindow, confidenceSubjectPattern)
}

// ReplyPhraseMatcher pairs acknowledgment phrases in the body with a recent
// acknowledgement sent to the same sender. The window is shorter than the
// subject heuristic's because body phrases are weaker evidence.
type ReplyPhraseMatcher struct {
	AutoResponses repository.AutoResponseStore
}

func (m *ReplyPhraseMatcher) Name() string { return MethodReplyPhrase }

func (m *ReplyPhraseMatcher) Match(ctx context.Context, email *parser.ParsedEmail) (*Classification, error) {
	body := strings.ToLower(email.TextBody + "\n" + email.HTMLBody)
	matched := false
	for _, phrase := range replyPhrases {
		if strings.Contains(body, phrase) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}
	return recentFollowup(ctx, m.AutoResponses, email, replyPhraseWindow, confidenceReplyPhrase)
}

// TicketNumberMatcher extracts a ticket-number marker from the subject and
// classifies REPLY when a live ticket matches.
type TicketNumberMatcher struct {
	Tickets repository.TicketStore
}

func (m *TicketNumberMatcher) Name() string { return MethodTicketNumber }

func (m *TicketNumberMatcher) Match(ctx context.Context, email *parser.ParsedEmail) (*Classification, error) {
	for _, sub := range ticketNumberMark.FindAllStringSubmatch(email.Subject, -1) {
		number := sub[1]
		ticket, err := m.Tickets.GetByNumber(ctx, number)
		if errors.Is(err, repository.ErrNotFound) {
			if id, convErr := strconv.Atoi(number); convErr == nil {
				ticket, err = m.Tickets.GetByID(ctx, id)
			}
		}
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ticket.IsLive() {
			continue
		}
		return &Classification{
			Type:       models.EmailTypeReply,
			Confidence: 1.0,
			TicketID:   ticket.ID,
		}, nil
	}
	return nil, nil
}

func followup(ar *models.AutoResponse, confidence float64) *Classification {
	return &Classification{
		Type:         models.EmailTypeFollowup,
		Confidence:   confidence,
		TicketID:     ar.TicketID,
		AutoResponse: ar,
	}
}

func recentFollowup(ctx context.Context, store repository.AutoResponseStore, email *parser.ParsedEmail, window time.Duration, confidence float64) (*Classification, error) {
	sender := email.SenderAddress()
	if sender == "" {
		return nil, nil
	}
	ar, err := store.LatestForRecipient(ctx, sender, time.Now().Add(-window))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return followup(ar, confidence), nil
}
