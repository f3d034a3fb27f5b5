package notifications

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

// AgentNotifier alerts the assigned agent when a follow-up lands on their
// ticket. Delivery failures are the caller's to log; routing never depends
// on the alert going out.
type AgentNotifier struct {
	provider Provider
	agents   repository.AgentStore
	logger   *log.Logger
}

// NewAgentNotifier builds an AgentNotifier.
func NewAgentNotifier(provider Provider, agents repository.AgentStore, logger *log.Logger) *AgentNotifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &AgentNotifier{provider: provider, agents: agents, logger: logger}
}

// NotifyFollowup tells the ticket's assigned agent about a new follow-up.
// Unassigned tickets are a no-op.
func (n *AgentNotifier) NotifyFollowup(ctx context.Context, ticket *models.Ticket, from, excerpt string) error {
	if ticket.AssignedTo == nil {
		return nil
	}
	agent, err := n.agents.GetAgent(ctx, *ticket.AssignedTo)
	if err != nil {
		return fmt.Errorf("failed to load assigned agent %d: %w", *ticket.AssignedTo, err)
	}
	if agent.Email == "" {
		return nil
	}

	const maxExcerpt = 500
	if len(excerpt) > maxExcerpt {
		excerpt = excerpt[:maxExcerpt] + "..."
	}
	subject := fmt.Sprintf("Follow-up on ticket #%s: %s", ticket.Number, ticket.Subject)
	body := fmt.Sprintf("A follow-up from %s arrived on ticket #%s.\n\n%s\n", from, ticket.Number, excerpt)

	if _, err := n.provider.Send(ctx, EmailMessage{
		To:      []string{agent.Email},
		Subject: subject,
		Text:    body,
	}); err != nil {
		return fmt.Errorf("failed to notify agent %d: %w", agent.ID, err)
	}
	n.logger.Printf("notifications: follow-up alert sent to agent %d for ticket %s", agent.ID, ticket.Number)
	return nil
}
