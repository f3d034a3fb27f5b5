package notifications

import (
	"context"
	"strings"
	"testing"

	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

type fakeProvider struct {
	sent      []EmailMessage
	messageID string
	err       error
}

func (f *fakeProvider) Send(_ context.Context, msg EmailMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return f.messageID, nil
}

func TestAutoResponderRespond(t *testing.T) {
	provider := &fakeProvider{messageID: "<gen-123@mail.test>"}
	autoResponses := repository.NewMemoryAutoResponseRepository()
	emailLog := repository.NewMemoryEmailLogRepository()
	responder := NewAutoResponder(provider, autoResponses, emailLog)

	ticket := &models.Ticket{ID: 9, Number: "42", Subject: "Printer not working"}
	if err := responder.Respond(context.Background(), ticket, "user@corp.com"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(provider.sent) != 1 {
		t.Fatalf("expected one message sent, got %d", len(provider.sent))
	}
	msg := provider.sent[0]
	if msg.To[0] != "user@corp.com" {
		t.Fatalf("unexpected recipient %s", msg.To[0])
	}
	if !strings.Contains(msg.Subject, "[Response-ID: ar_") || !strings.Contains(msg.Subject, "Your ticket #42") {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "#42") || !strings.Contains(msg.Text, "[Response-ID: ar_") {
		t.Fatalf("body missing correlation content: %q", msg.Text)
	}
	if msg.HTML == "" || !strings.Contains(msg.HTML, "<strong>") {
		t.Fatalf("expected rendered HTML body, got %q", msg.HTML)
	}
	if msg.Headers["Auto-Submitted"] != "auto-replied" {
		t.Fatalf("expected Auto-Submitted header")
	}

	// Persisted AutoResponse must carry the same token as the subject.
	token := msg.Subject[strings.Index(msg.Subject, "ar_"):]
	token = token[:strings.Index(token, "]")]
	ar, err := autoResponses.FindByResponseID(context.Background(), token)
	if err != nil {
		t.Fatalf("auto-response not recorded: %v", err)
	}
	if ar.TicketID != 9 || ar.Status != models.EmailStatusSent {
		t.Fatalf("unexpected auto-response row: %+v", ar)
	}
	if ar.ThreadID == nil || *ar.ThreadID != "gen-123@mail.test" {
		t.Fatalf("expected thread id from provider message id, got %v", ar.ThreadID)
	}

	entries := emailLog.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one outbound audit entry, got %d", len(entries))
	}
	if entries[0].Direction != models.DirectionOutbound || entries[0].Status != models.EmailStatusSent {
		t.Fatalf("unexpected audit entry: %+v", entries[0])
	}
	if entries[0].TicketID == nil || *entries[0].TicketID != 9 {
		t.Fatalf("audit entry not linked to ticket")
	}
}

func TestAgentNotifierSkipsUnassigned(t *testing.T) {
	provider := &fakeProvider{}
	notifier := NewAgentNotifier(provider, repository.NewMemoryAgentRepository(), nil)

	err := notifier.NotifyFollowup(context.Background(), &models.Ticket{Number: "7"}, "user@corp.com", "body")
	if err != nil {
		t.Fatalf("NotifyFollowup: %v", err)
	}
	if len(provider.sent) != 0 {
		t.Fatalf("unassigned ticket must not trigger a notification")
	}
}

func TestAgentNotifierSendsToAssignedAgent(t *testing.T) {
	provider := &fakeProvider{}
	agents := repository.NewMemoryAgentRepository()
	agents.Seed(models.Agent{ID: 5, Email: "agent@deskpilot.test", IsAgent: true})
	notifier := NewAgentNotifier(provider, agents, nil)

	assigned := 5
	ticket := &models.Ticket{ID: 1, Number: "7", Subject: "VPN down", AssignedTo: &assigned}
	if err := notifier.NotifyFollowup(context.Background(), ticket, "user@corp.com", "it still fails"); err != nil {
		t.Fatalf("NotifyFollowup: %v", err)
	}
	if len(provider.sent) != 1 || provider.sent[0].To[0] != "agent@deskpilot.test" {
		t.Fatalf("expected notification to agent, got %+v", provider.sent)
	}
	if !strings.Contains(provider.sent[0].Text, "it still fails") {
		t.Fatalf("notification missing excerpt")
	}
}
