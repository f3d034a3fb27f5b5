package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// MemoryTicketRepository implements TicketStore with in-memory storage.
// This is for development/testing. Production should use the SQL implementation.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[int]*models.Ticket
	history []models.StatusHistory
	nextID  int
}

// NewMemoryTicketRepository creates a new in-memory ticket repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[int]*models.Ticket),
		nextID:  1001, // start above fixtures
	}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket.ID = r.nextID
	r.nextID++
	now := time.Now()
	if ticket.Number == "" {
		ticket.Number = fmt.Sprintf("%s%05d", now.Format("20060102"), ticket.ID)
	}
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id int) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *ticket
	return &dup, nil
}

func (r *MemoryTicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ticket := range r.tickets {
		if ticket.Number == number {
			dup := *ticket
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryTicketRepository) UpdateStatus(ctx context.Context, ticketID, statusID int, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	from := ticket.StatusID
	ticket.StatusID = statusID
	ticket.UpdatedAt = time.Now()
	r.history = append(r.history, models.StatusHistory{
		TicketID:     ticketID,
		FromStatusID: &from,
		ToStatusID:   &statusID,
		Note:         note,
		CreatedAt:    time.Now(),
	})
	return nil
}

func (r *MemoryTicketRepository) Assign(ctx context.Context, ticketID, agentID int, method string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	ticket.AssignedTo = &agentID
	ticket.AssignedAt = &at
	ticket.UpdatedAt = time.Now()
	r.history = append(r.history, models.StatusHistory{
		TicketID:  ticketID,
		Note:      fmt.Sprintf("auto-assigned to agent %d via %s", agentID, method),
		CreatedAt: time.Now(),
	})
	return nil
}

// Seed stores a ticket as-is, preserving its ID, for test fixtures.
func (r *MemoryTicketRepository) Seed(ticket models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket.ID >= r.nextID {
		r.nextID = ticket.ID + 1
	}
	r.tickets[ticket.ID] = &ticket
}

// History returns a snapshot of the recorded transitions, for test assertions.
func (r *MemoryTicketRepository) History() []models.StatusHistory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.StatusHistory, len(r.history))
	copy(out, r.history)
	return out
}

// MemoryCommentRepository implements CommentStore with in-memory storage.
type MemoryCommentRepository struct {
	mu       sync.Mutex
	comments []*models.Comment
	nextID   int
}

// NewMemoryCommentRepository creates a new in-memory comment repository.
func NewMemoryCommentRepository() *MemoryCommentRepository {
	return &MemoryCommentRepository{nextID: 1}
}

func (r *MemoryCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment.ID = r.nextID
	r.nextID++
	comment.CreatedAt = time.Now()
	stored := *comment
	r.comments = append(r.comments, &stored)
	return nil
}

// Comments returns a snapshot of stored comments, for test assertions.
func (r *MemoryCommentRepository) Comments() []models.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Comment, 0, len(r.comments))
	for _, c := range r.comments {
		out = append(out, *c)
	}
	return out
}

// MemoryAttachmentRepository implements AttachmentStore with in-memory storage.
type MemoryAttachmentRepository struct {
	mu          sync.Mutex
	attachments []*models.Attachment
	nextID      int
}

// NewMemoryAttachmentRepository creates a new in-memory attachment repository.
func NewMemoryAttachmentRepository() *MemoryAttachmentRepository {
	return &MemoryAttachmentRepository{nextID: 1}
}

func (r *MemoryAttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attachment.ID = r.nextID
	r.nextID++
	attachment.CreatedAt = time.Now()
	stored := *attachment
	r.attachments = append(r.attachments, &stored)
	return nil
}

// Attachments returns a snapshot of stored attachments, for test assertions.
func (r *MemoryAttachmentRepository) Attachments() []models.Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Attachment, 0, len(r.attachments))
	for _, a := range r.attachments {
		out = append(out, *a)
	}
	return out
}
