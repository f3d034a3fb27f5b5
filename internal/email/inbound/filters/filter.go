package filters

import (
	"context"
	"errors"
	"fmt"

	"github.com/deskpilot-io/deskpilot/internal/config"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
)

// MessageContext is the envelope admission filters operate on.
type MessageContext struct {
	Email  *parser.ParsedEmail
	Policy config.FilterPolicy
}

// Filter inspects a message before any persistence happens.
type Filter interface {
	ID() string
	Apply(ctx context.Context, m *MessageContext) error
}

// RejectionError terminates processing with an operator-diagnosable reason.
// The reason string is persisted verbatim on the ERROR audit entry.
type RejectionError struct {
	Rule   string
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Reject builds a RejectionError for the given rule.
func Reject(rule, format string, args ...any) error {
	return &RejectionError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps a RejectionError when err is one.
func AsRejection(err error) (*RejectionError, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

// Chain executes filters in order, short-circuiting on the first error.
type Chain struct {
	filters []Filter
}

// NewChain returns a filter chain that runs the provided filters sequentially.
func NewChain(fs ...Filter) Chain {
	return Chain{filters: fs}
}

// DefaultChain builds the admission chain in its fixed evaluation order.
// The order is part of the contract: a message failing several rules is
// rejected for the first one.
func DefaultChain() Chain {
	return NewChain(
		&MessageIDFilter{},
		&DomainPolicyFilter{},
		&ValidFromFilter{},
		&EmptySubjectFilter{},
		&AutoReplyFilter{},
		&AttachmentCountFilter{},
		&AttachmentSizeFilter{},
	)
}

// Run executes the chain.
func (c Chain) Run(ctx context.Context, m *MessageContext) error {
	for _, f := range c.filters {
		if err := f.Apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
