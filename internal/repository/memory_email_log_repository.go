package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// MemoryEmailLogRepository implements EmailLogStore with in-memory storage.
// This is for development/testing. Production should use the SQL implementation.
type MemoryEmailLogRepository struct {
	mu      sync.RWMutex
	entries map[int]*models.EmailLogEntry
	byMsgID map[string]int
	nextID  int
}

// NewMemoryEmailLogRepository creates a new in-memory email log repository.
func NewMemoryEmailLogRepository() *MemoryEmailLogRepository {
	return &MemoryEmailLogRepository{
		entries: make(map[int]*models.EmailLogEntry),
		byMsgID: make(map[string]int),
		nextID:  1,
	}
}

// Record inserts the entry unless its message id is already known, in which
// case the existing row is returned with created=false. Entries without a
// message id are always stored and never deduplicated, matching the SQL
// implementation.
func (r *MemoryEmailLogRepository) Record(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.MessageID != nil && strings.TrimSpace(*entry.MessageID) == "" {
		entry.MessageID = nil
	}
	if entry.MessageID != nil {
		if id, ok := r.byMsgID[*entry.MessageID]; ok {
			return copyLogEntry(r.entries[id]), false, nil
		}
	}
	stored := r.store(entry)
	return copyLogEntry(stored), true, nil
}

func (r *MemoryEmailLogRepository) FindByMessageID(ctx context.Context, messageID string) (*models.EmailLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMsgID[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyLogEntry(r.entries[id]), nil
}

// InsertUnparsed stores the entry without a message id so malformed messages
// never collide with each other.
func (r *MemoryEmailLogRepository) InsertUnparsed(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.MessageID = nil
	return copyLogEntry(r.store(entry)), nil
}

func (r *MemoryEmailLogRepository) Insert(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return copyLogEntry(r.store(entry)), nil
}

func (r *MemoryEmailLogRepository) LinkTicket(ctx context.Context, id, ticketID int, emailType, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.TicketID = &ticketID
	entry.Type = &emailType
	entry.Status = status
	entry.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEmailLogRepository) MarkError(ctx context.Context, id int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.Status = models.EmailStatusError
	entry.Error = &reason
	entry.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEmailLogRepository) MarkStatus(ctx context.Context, id int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.Status = status
	entry.UpdatedAt = time.Now()
	return nil
}

// Entries returns a snapshot of all stored rows, for test assertions.
func (r *MemoryEmailLogRepository) Entries() []models.EmailLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.EmailLogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

func (r *MemoryEmailLogRepository) store(entry *models.EmailLogEntry) *models.EmailLogEntry {
	stored := copyLogEntry(entry)
	stored.ID = r.nextID
	r.nextID++
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.entries[stored.ID] = stored
	if stored.MessageID != nil {
		r.byMsgID[*stored.MessageID] = stored.ID
	}
	entry.ID = stored.ID
	return stored
}

func copyLogEntry(entry *models.EmailLogEntry) *models.EmailLogEntry {
	dup := *entry
	return &dup
}
