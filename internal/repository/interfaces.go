package repository

import (
	"context"
	"errors"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// EmailLogStore is the dedup and audit log for every message the pipeline
// sees, inbound or outbound.
type EmailLogStore interface {
	// Record inserts an entry for an inbound message, tolerating concurrent
	// duplicate inserts: on a unique-constraint conflict the existing row is
	// fetched and returned with created=false. Entries without a message id
	// are stored under NULL and never deduplicated.
	Record(ctx context.Context, entry *models.EmailLogEntry) (stored *models.EmailLogEntry, created bool, err error)
	FindByMessageID(ctx context.Context, messageID string) (*models.EmailLogEntry, error)
	// InsertUnparsed records a malformed message under a NULL message id.
	InsertUnparsed(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, error)
	Insert(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, error)
	LinkTicket(ctx context.Context, id, ticketID int, emailType, status string) error
	MarkError(ctx context.Context, id int, reason string) error
	MarkStatus(ctx context.Context, id int, status string) error
}

// AutoResponseStore persists and resolves automatic acknowledgements.
type AutoResponseStore interface {
	Insert(ctx context.Context, ar *models.AutoResponse) error
	FindByResponseID(ctx context.Context, responseID string) (*models.AutoResponse, error)
	// FindByThreadToken matches a thread id, message id, or response id token
	// against stored auto-responses.
	FindByThreadToken(ctx context.Context, token string) (*models.AutoResponse, error)
	LatestForRecipient(ctx context.Context, email string, since time.Time) (*models.AutoResponse, error)
}

// FollowupStore persists follow-up linkage rows.
type FollowupStore interface {
	Insert(ctx context.Context, followup *models.EmailFollowup) error
}

// TicketStore is the slice of the ticket store the pipeline depends on.
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id int) (*models.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*models.Ticket, error)
	// UpdateStatus changes the ticket status and writes the matching history
	// row in the same transaction.
	UpdateStatus(ctx context.Context, ticketID, statusID int, note string) error
	// Assign persists assignee and assignment time together with a history
	// entry naming the assignment method, in one transaction.
	Assign(ctx context.Context, ticketID, agentID int, method string, at time.Time) error
}

// CommentStore appends ticket comments.
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
}

// AttachmentStore persists ticket attachments.
type AttachmentStore interface {
	Create(ctx context.Context, attachment *models.Attachment) error
}

// LookupStore resolves category/priority/status configuration.
type LookupStore interface {
	DefaultCategory(ctx context.Context) (*models.Category, error)
	DefaultPriority(ctx context.Context) (*models.Priority, error)
	DefaultStatus(ctx context.Context) (*models.Status, error)
	StatusByKind(ctx context.Context, kind string) (*models.Status, error)
	RulesForCategory(ctx context.Context, categoryID int) ([]models.AssignmentRule, error)
}

// AgentStore reads agent availability snapshots and records assignments.
type AgentStore interface {
	GetAgent(ctx context.Context, id int) (*models.Agent, error)
	// AvailableAgentsByDepartment returns available agents ordered by
	// LastAssignmentAt ascending (oldest-assigned first), with open-ticket
	// counts populated.
	AvailableAgentsByDepartment(ctx context.Context, departmentID int) ([]models.Agent, error)
	UpdateLastAssignment(ctx context.Context, agentID int, at time.Time) error
}
