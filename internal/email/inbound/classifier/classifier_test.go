package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

func seedAutoResponse(t *testing.T, store *repository.MemoryAutoResponseRepository, ar models.AutoResponse) models.AutoResponse {
	t.Helper()
	if ar.SentAt.IsZero() {
		ar.SentAt = time.Now()
	}
	if err := store.Insert(context.Background(), &ar); err != nil {
		t.Fatalf("seed auto-response: %v", err)
	}
	return ar
}

func seedTicket(t *testing.T, store *repository.MemoryTicketRepository, number string) *models.Ticket {
	t.Helper()
	ticket := &models.Ticket{Number: number, Subject: "seed", SubmitterEmail: "user@corp.com"}
	if err := store.Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func TestClassifyResponseToken(t *testing.T) {
	autoResponses := repository.NewMemoryAutoResponseRepository()
	tickets := repository.NewMemoryTicketRepository()
	ar := seedAutoResponse(t, autoResponses, models.AutoResponse{TicketID: 7, ResponseID: "ar_abc123", ToEmail: "user@corp.com"})

	c := New(autoResponses, tickets)
	result := c.Classify(context.Background(), &parser.ParsedEmail{
		Subject:  "Re: [Response-ID: ar_abc123] Your ticket",
		TextBody: "still broken",
		From:     "user@corp.com",
	})
	if result.Type != models.EmailTypeFollowup {
		t.Fatalf("expected FOLLOWUP, got %s", result.Type)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", result.Confidence)
	}
	if result.TicketID != 7 {
		t.Fatalf("expected ticket 7, got %d", result.TicketID)
	}
	if result.AutoResponse == nil || result.AutoResponse.ID != ar.ID {
		t.Fatalf("expected matched auto-response %d", ar.ID)
	}
}

func TestClassifyTokenOutranksTicketNumber(t *testing.T) {
	autoResponses := repository.NewMemoryAutoResponseRepository()
	tickets := repository.NewMemoryTicketRepository()
	seedAutoResponse(t, autoResponses, models.AutoResponse{TicketID: 7, ResponseID: "ar_abc123", ToEmail: "user@corp.com"})
	unrelated := seedTicket(t, tickets, "555")

	c := New(autoResponses, tickets)
	result := c.Classify(context.Background(), &parser.ParsedEmail{
		Subject:  "About ticket #555",
		TextBody: "my reference is [Response-ID: ar_abc123] thanks",
		From:     "user@corp.com",
	})
	if result.Type != models.EmailTypeFollowup {
		t.Fatalf("expected FOLLOWUP to win over REPLY, got %s", result.Type)
	}
	if result.TicketID == unrelated.ID {
		t.Fatalf("token match should not resolve to the ticket-number ticket")
	}
}

func TestClassifyThreadHeaderConfidence(t *testing.T) {
	threadID := "thread-99"
	cases := []struct {
		name       string
		email      parser.ParsedEmail
		confidence float64
	}{
		{"thread id", parser.ParsedEmail{ThreadID: "thread-99"}, 0.8},
		{"in-reply-to", parser.ParsedEmail{InReplyTo: "<thread-99>"}, 0.7},
		{"references", parser.ParsedEmail{References: []string{"<other>", "<thread-99>"}}, 0.6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			autoResponses := repository.NewMemoryAutoResponseRepository()
			tickets := repository.NewMemoryTicketRepository()
			seedAutoResponse(t, autoResponses, models.AutoResponse{
				TicketID: 3, ResponseID: "ar_zzz", ToEmail: "user@corp.com", ThreadID: &threadID,
			})
			c := New(autoResponses, tickets)
			result := c.Classify(context.Background(), &tc.email)
			if result.Type != models.EmailTypeFollowup {
				t.Fatalf("expected FOLLOWUP, got %s", result.Type)
			}
			if result.Confidence != tc.confidence {
				t.Fatalf("expected confidence %v, got %v", tc.confidence, result.Confidence)
			}
		})
	}
}

func TestClassifySubjectPatternRequiresRecentResponse(t *testing.T) {
	autoResponses := repository.NewMemoryAutoResponseRepository()
	tickets := repository.NewMemoryTicketRepository()
	c := New(autoResponses, tickets)

	email := &parser.ParsedEmail{
		Subject: "Re: your support ticket",
		From:    "user@corp.com",
	}
	if result := c.Classify(context.Background(), email); result.Type != models.EmailTypeNew {
		t.Fatalf("without a recent auto-response, expected NEW, got %s", result.Type)
	}

	seedAutoResponse(t, autoResponses, models.AutoResponse{
		TicketID: 4, ResponseID: "ar_recent", ToEmail: "user@corp.com", SentAt: time.Now().Add(-48 * time.Hour),
	})
	result := c.Classify(context.Background(), email)
	if result.Type != models.EmailTypeFollowup || result.Confidence != 0.5 {
		t.Fatalf("expected FOLLOWUP at 0.5, got %s at %v", result.Type, result.Confidence)
	}
}

func TestClassifyReplyPhraseWindow(t *testing.T) {
	autoResponses := repository.NewMemoryAutoResponseRepository()
	tickets := repository.NewMemoryTicketRepository()
	seedAutoResponse(t, autoResponses, models.AutoResponse{
		TicketID: 4, ResponseID: "ar_old", ToEmail: "user@corp.com", SentAt: time.Now().Add(-5 * 24 * time.Hour),
	})
	c := New(autoResponses, tickets)

	email := &parser.ParsedEmail{
		Subject:  "hello",
		TextBody: "Thank you for your response, it helped.",
		From:     "user@corp.com",
	}
	if result := c.Classify(context.Background(), email); result.Type != models.EmailTypeNew {
		t.Fatalf("auto-response older than 3 days should not match, got %s", result.Type)
	}

	seedAutoResponse(t, autoResponses, models.AutoResponse{
		TicketID: 4, ResponseID: "ar_fresh", ToEmail: "user@corp.com", SentAt: time.Now().Add(-time.Hour),
	})
	result := c.Classify(context.Background(), email)
	if result.Type != models.EmailTypeFollowup || result.Confidence != 0.4 {
		t.Fatalf("expected FOLLOWUP at 0.4, got %s at %v", result.Type, result.Confidence)
	}
}

func TestClassifyTicketNumberReply(t *testing.T) {
	autoResponses := repository.NewMemoryAutoResponseRepository()
	tickets := repository.NewMemoryTicketRepository()
	ticket := seedTicket(t, tickets, "42")
	c := New(autoResponses, tickets)

	result := c.Classify(context.Background(), &parser.ParsedEmail{
		Subject: "Problem with ticket #42 again",
		From:    "user@corp.com",
	})
	if result.Type != models.EmailTypeReply {
		t.Fatalf("expected REPLY, got %s", result.Type)
	}
	if result.TicketID != ticket.ID {
		t.Fatalf("expected ticket %d, got %d", ticket.ID, result.TicketID)
	}
}

func TestClassifyTicketNumberSkipsClosedTickets(t *testing.T) {
	for _, kind := range []string{models.StatusKindResolved, models.StatusKindClosed} {
		t.Run(kind, func(t *testing.T) {
			autoResponses := repository.NewMemoryAutoResponseRepository()
			tickets := repository.NewMemoryTicketRepository()
			ticket := seedTicket(t, tickets, "42")
			ticket.StatusKind = kind
			tickets.Seed(*ticket)
			c := New(autoResponses, tickets)

			result := c.Classify(context.Background(), &parser.ParsedEmail{
				Subject:  "Problem with ticket #42 again",
				TextBody: "It came back.",
				From:     "user@corp.com",
			})
			if result.Type != models.EmailTypeNew {
				t.Fatalf("expected NEW for %s ticket, got %s", kind, result.Type)
			}
			if result.Method != MethodNone {
				t.Fatalf("expected method none, got %s", result.Method)
			}
		})
	}
}

func TestClassifyDefaultsToNew(t *testing.T) {
	c := New(repository.NewMemoryAutoResponseRepository(), repository.NewMemoryTicketRepository())
	result := c.Classify(context.Background(), &parser.ParsedEmail{
		Subject:  "Printer not working",
		TextBody: "The third floor printer is jammed.",
		From:     "user@corp.com",
	})
	if result.Type != models.EmailTypeNew {
		t.Fatalf("expected NEW, got %s", result.Type)
	}
	if result.Method != MethodNone {
		t.Fatalf("expected method none, got %s", result.Method)
	}
}
