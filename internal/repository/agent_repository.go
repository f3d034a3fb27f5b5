package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deskpilot-io/deskpilot/internal/database"
	"github.com/deskpilot-io/deskpilot/internal/models"
)

// AgentRepository reads agent availability snapshots at assignment time. Open
// ticket counts are derived from non-resolved, non-closed tickets.
type AgentRepository struct {
	db *sqlx.DB
}

func NewAgentRepository(db *sqlx.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentSnapshotQuery = `
	SELECT u.id, u.email, u.name, u.department_id, u.is_agent, u.is_available,
		u.max_concurrent_tickets, u.assignment_priority, u.last_assignment_at,
		COUNT(t.id) AS open_ticket_count
	FROM users u
	LEFT JOIN tickets t ON t.assigned_to = u.id
		AND t.status_id NOT IN (
			SELECT id FROM ticket_statuses WHERE kind IN ('resolved', 'closed')
		)`

// GetAgent returns one agent snapshot.
func (r *AgentRepository) GetAgent(ctx context.Context, id int) (*models.Agent, error) {
	query := database.ConvertPlaceholders(agentSnapshotQuery + `
	WHERE u.id = $1
	GROUP BY u.id, u.email, u.name, u.department_id, u.is_agent, u.is_available,
		u.max_concurrent_tickets, u.assignment_priority, u.last_assignment_at`)
	agent := &models.Agent{}
	err := sqlx.GetContext(ctx, r.db, agent, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %d: %w", id, err)
	}
	return agent, nil
}

// AvailableAgentsByDepartment returns available agents in the department,
// oldest-assigned first. The ordering is what makes department selection a
// round-robin.
func (r *AgentRepository) AvailableAgentsByDepartment(ctx context.Context, departmentID int) ([]models.Agent, error) {
	query := database.ConvertPlaceholders(agentSnapshotQuery + `
	WHERE u.department_id = $1 AND u.is_agent = $2 AND u.is_available = $3
	GROUP BY u.id, u.email, u.name, u.department_id, u.is_agent, u.is_available,
		u.max_concurrent_tickets, u.assignment_priority, u.last_assignment_at
	ORDER BY u.last_assignment_at ASC, u.id ASC`)
	var agents []models.Agent
	if err := sqlx.SelectContext(ctx, r.db, &agents, query, departmentID, true, true); err != nil {
		return nil, fmt.Errorf("failed to load agents for department %d: %w", departmentID, err)
	}
	return agents, nil
}

// UpdateLastAssignment bumps the agent's rotation timestamp. Without this
// write subsequent round-robin picks would not rotate.
func (r *AgentRepository) UpdateLastAssignment(ctx context.Context, agentID int, at time.Time) error {
	query := database.ConvertPlaceholders(
		`UPDATE users SET last_assignment_at = $1 WHERE id = $2`)
	if _, err := r.db.ExecContext(ctx, query, at, agentID); err != nil {
		return fmt.Errorf("failed to update last assignment for agent %d: %w", agentID, err)
	}
	return nil
}
