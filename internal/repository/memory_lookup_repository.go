package repository

import (
	"context"
	"sync"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// MemoryLookupRepository implements LookupStore with fixed in-memory data.
type MemoryLookupRepository struct {
	mu         sync.RWMutex
	Categories []models.Category
	Priorities []models.Priority
	Statuses   []models.Status
	Rules      map[int][]models.AssignmentRule
}

// NewMemoryLookupRepository creates a lookup repository seeded with a minimal
// default configuration.
func NewMemoryLookupRepository() *MemoryLookupRepository {
	return &MemoryLookupRepository{
		Categories: []models.Category{
			{ID: 1, Name: "General", IsDefault: true, IsActive: true},
		},
		Priorities: []models.Priority{
			{ID: 1, Name: "Low", SortOrder: 1},
			{ID: 2, Name: "Normal", IsDefault: true, SortOrder: 2},
			{ID: 3, Name: "High", SortOrder: 3},
		},
		Statuses: []models.Status{
			{ID: 1, Name: "New", Kind: models.StatusKindOpen, IsDefault: true},
			{ID: 2, Name: "Open", Kind: models.StatusKindOpen},
			{ID: 3, Name: "Resolved", Kind: models.StatusKindResolved},
			{ID: 4, Name: "Closed", Kind: models.StatusKindClosed},
		},
		Rules: make(map[int][]models.AssignmentRule),
	}
}

func (r *MemoryLookupRepository) DefaultCategory(ctx context.Context) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.Categories {
		if c.IsDefault {
			dup := c
			return &dup, nil
		}
	}
	if len(r.Categories) > 0 {
		dup := r.Categories[0]
		return &dup, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryLookupRepository) DefaultPriority(ctx context.Context) (*models.Priority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.Priorities {
		if p.IsDefault {
			dup := p
			return &dup, nil
		}
	}
	if len(r.Priorities) > 0 {
		dup := r.Priorities[0]
		return &dup, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryLookupRepository) DefaultStatus(ctx context.Context) (*models.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.Statuses {
		if s.IsDefault {
			dup := s
			return &dup, nil
		}
	}
	if len(r.Statuses) > 0 {
		dup := r.Statuses[0]
		return &dup, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryLookupRepository) StatusByKind(ctx context.Context, kind string) (*models.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.Statuses {
		if s.Kind == kind {
			dup := s
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryLookupRepository) RulesForCategory(ctx context.Context, categoryID int) ([]models.AssignmentRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := r.Rules[categoryID]
	out := make([]models.AssignmentRule, len(rules))
	copy(out, rules)
	return out, nil
}

// AddRule registers an assignment rule for a category.
func (r *MemoryLookupRepository) AddRule(categoryID int, rule models.AssignmentRule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Rules[categoryID] = append(r.Rules[categoryID], rule)
}
