// Package classifier decides whether an inbound message opens a new ticket,
// replies to an existing one, or follows up on a previously sent
// auto-response. Heuristics run as an ordered matcher chain; the first
// positive match wins, so exact correlation evidence always outranks
// probabilistic text matching.
package classifier

import (
	"context"
	"io"
	"log"

	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

// Classification method names, recorded for diagnostics.
const (
	MethodResponseToken  = "response_token"
	MethodThreadHeader   = "thread_header"
	MethodSubjectPattern = "subject_pattern"
	MethodReplyPhrase    = "reply_phrase"
	MethodTicketNumber   = "ticket_number"
	MethodNone           = "none"
)

// Classification is the outcome of running the matcher chain.
type Classification struct {
	Type       string
	Confidence float64
	Method     string

	// TicketID is set for REPLY and FOLLOWUP classifications.
	TicketID int
	// AutoResponse is the matched acknowledgement, set for FOLLOWUP only.
	AutoResponse *models.AutoResponse
}

// Matcher is one heuristic in the chain. A nil Classification with a nil
// error means "no opinion, try the next matcher".
type Matcher interface {
	Name() string
	Match(ctx context.Context, email *parser.ParsedEmail) (*Classification, error)
}

// Classifier runs matchers in order and falls back to NEW.
type Classifier struct {
	matchers []Matcher
	logger   *log.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// WithMatchers replaces the default matcher chain.
func WithMatchers(matchers ...Matcher) Option {
	return func(c *Classifier) { c.matchers = matchers }
}

// New builds a Classifier with the default chain: response token, thread
// headers, subject pattern, reply phrases, ticket number.
func New(autoResponses repository.AutoResponseStore, tickets repository.TicketStore, opts ...Option) *Classifier {
	c := &Classifier{
		matchers: []Matcher{
			&TokenMatcher{AutoResponses: autoResponses},
			&ThreadHeaderMatcher{AutoResponses: autoResponses},
			&SubjectPatternMatcher{AutoResponses: autoResponses},
			&ReplyPhraseMatcher{AutoResponses: autoResponses},
			&TicketNumberMatcher{Tickets: tickets},
		},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the chain. Matcher errors are logged and treated as
// non-matches so a flaky lookup never misroutes a message to ERROR.
func (c *Classifier) Classify(ctx context.Context, email *parser.ParsedEmail) Classification {
	for _, m := range c.matchers {
		result, err := m.Match(ctx, email)
		if err != nil {
			c.logf("classifier: matcher %s failed for %s: %v", m.Name(), email.MessageID, err)
			continue
		}
		if result == nil {
			continue
		}
		c.logf("classifier: %s matched message %s as %s (confidence %.1f)",
			m.Name(), email.MessageID, result.Type, result.Confidence)
		result.Method = m.Name()
		return *result
	}
	return Classification{Type: models.EmailTypeNew, Method: MethodNone}
}

func (c *Classifier) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
