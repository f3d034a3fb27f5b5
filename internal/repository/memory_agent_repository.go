package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// MemoryAgentRepository implements AgentStore with in-memory storage.
type MemoryAgentRepository struct {
	mu     sync.RWMutex
	agents map[int]*models.Agent
}

// NewMemoryAgentRepository creates a new in-memory agent repository.
func NewMemoryAgentRepository() *MemoryAgentRepository {
	return &MemoryAgentRepository{agents: make(map[int]*models.Agent)}
}

// Seed stores an agent as-is, for test fixtures.
func (r *MemoryAgentRepository) Seed(agent models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[agent.ID] = &agent
}

func (r *MemoryAgentRepository) GetAgent(ctx context.Context, id int) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *agent
	return &dup, nil
}

func (r *MemoryAgentRepository) AvailableAgentsByDepartment(ctx context.Context, departmentID int) ([]models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Agent
	for _, agent := range r.agents {
		if agent.DepartmentID == nil || *agent.DepartmentID != departmentID {
			continue
		}
		if !agent.IsAgent || !agent.IsAvailable {
			continue
		}
		out = append(out, *agent)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAssignmentAt.Equal(out[j].LastAssignmentAt) {
			return out[i].LastAssignmentAt.Before(out[j].LastAssignmentAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryAgentRepository) UpdateLastAssignment(ctx context.Context, agentID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	agent.LastAssignmentAt = at
	return nil
}
