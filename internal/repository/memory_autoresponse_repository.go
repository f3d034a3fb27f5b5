package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// MemoryAutoResponseRepository implements AutoResponseStore with in-memory
// storage for development and testing.
type MemoryAutoResponseRepository struct {
	mu        sync.RWMutex
	responses []*models.AutoResponse
	nextID    int
}

// NewMemoryAutoResponseRepository creates a new in-memory auto-response repository.
func NewMemoryAutoResponseRepository() *MemoryAutoResponseRepository {
	return &MemoryAutoResponseRepository{nextID: 1}
}

func (r *MemoryAutoResponseRepository) Insert(ctx context.Context, ar *models.AutoResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *ar
	stored.ID = r.nextID
	r.nextID++
	r.responses = append(r.responses, &stored)
	ar.ID = stored.ID
	return nil
}

func (r *MemoryAutoResponseRepository) FindByResponseID(ctx context.Context, responseID string) (*models.AutoResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ar := range r.responses {
		if ar.ResponseID == responseID {
			dup := *ar
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAutoResponseRepository) FindByThreadToken(ctx context.Context, token string) (*models.AutoResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ar := range r.responses {
		if ar.ResponseID == token {
			dup := *ar
			return &dup, nil
		}
		if ar.ThreadID != nil && *ar.ThreadID == token {
			dup := *ar
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAutoResponseRepository) LatestForRecipient(ctx context.Context, email string, since time.Time) (*models.AutoResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.AutoResponse
	for _, ar := range r.responses {
		if !strings.EqualFold(ar.ToEmail, email) || ar.SentAt.Before(since) {
			continue
		}
		if latest == nil || ar.SentAt.After(latest.SentAt) {
			latest = ar
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	dup := *latest
	return &dup, nil
}

// MemoryFollowupRepository implements FollowupStore with in-memory storage.
type MemoryFollowupRepository struct {
	mu        sync.Mutex
	followups []*models.EmailFollowup
	nextID    int
}

// NewMemoryFollowupRepository creates a new in-memory followup repository.
func NewMemoryFollowupRepository() *MemoryFollowupRepository {
	return &MemoryFollowupRepository{nextID: 1}
}

func (r *MemoryFollowupRepository) Insert(ctx context.Context, followup *models.EmailFollowup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *followup
	stored.ID = r.nextID
	r.nextID++
	r.followups = append(r.followups, &stored)
	followup.ID = stored.ID
	return nil
}

// Followups returns a snapshot of stored rows, for test assertions.
func (r *MemoryFollowupRepository) Followups() []models.EmailFollowup {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.EmailFollowup, 0, len(r.followups))
	for _, f := range r.followups {
		out = append(out, *f)
	}
	return out
}
