package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/deskpilot-io/deskpilot/internal/database"
	"github.com/deskpilot-io/deskpilot/internal/models"
)

// LookupRepository resolves category/priority/status defaults and the
// category-scoped assignment rules.
type LookupRepository struct {
	db *sqlx.DB
}

func NewLookupRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

// DefaultCategory returns the category flagged as default, or the first
// configured one.
func (r *LookupRepository) DefaultCategory(ctx context.Context) (*models.Category, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, name, is_default, is_active, created_at FROM ticket_categories
		WHERE is_active = $1 ORDER BY is_default DESC, id ASC LIMIT 1`)
	category := &models.Category{}
	err := sqlx.GetContext(ctx, r.db, category, query, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default category: %w", err)
	}
	return category, nil
}

// DefaultPriority returns the priority flagged as default, or the first one.
func (r *LookupRepository) DefaultPriority(ctx context.Context) (*models.Priority, error) {
	query := `
		SELECT id, name, is_default, sort_order FROM ticket_priorities
		ORDER BY is_default DESC, sort_order ASC, id ASC LIMIT 1`
	priority := &models.Priority{}
	err := sqlx.GetContext(ctx, r.db, priority, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default priority: %w", err)
	}
	return priority, nil
}

// DefaultStatus returns the status flagged as default, or the first open one.
func (r *LookupRepository) DefaultStatus(ctx context.Context) (*models.Status, error) {
	query := `
		SELECT id, name, kind, is_default FROM ticket_statuses
		ORDER BY is_default DESC, id ASC LIMIT 1`
	status := &models.Status{}
	err := sqlx.GetContext(ctx, r.db, status, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default status: %w", err)
	}
	return status, nil
}

// StatusByKind returns the first status of the given lifecycle kind.
func (r *LookupRepository) StatusByKind(ctx context.Context, kind string) (*models.Status, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, name, kind, is_default FROM ticket_statuses
		WHERE kind = $1 ORDER BY id ASC LIMIT 1`)
	status := &models.Status{}
	err := sqlx.GetContext(ctx, r.db, status, query, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve status kind %q: %w", kind, err)
	}
	return status, nil
}

type assignmentRuleRow struct {
	ID                 int            `db:"id"`
	CategoryID         int            `db:"category_id"`
	AssignmentType     string         `db:"assignment_type"`
	TargetDepartmentID *int           `db:"target_department_id"`
	TargetAgentID      *int           `db:"target_agent_id"`
	FallbackTo         string         `db:"fallback_to"`
	Priority           int            `db:"priority"`
	Conditions         sql.NullString `db:"conditions"`
}

// RulesForCategory loads the category's assignment rules. Conditions are
// stored as JSON and decoded into the typed predicate.
func (r *LookupRepository) RulesForCategory(ctx context.Context, categoryID int) ([]models.AssignmentRule, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, category_id, assignment_type, target_department_id,
			target_agent_id, fallback_to, priority, conditions
		FROM assignment_rules WHERE category_id = $1`)
	var rows []assignmentRuleRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, categoryID); err != nil {
		return nil, fmt.Errorf("failed to load assignment rules for category %d: %w", categoryID, err)
	}
	rules := make([]models.AssignmentRule, 0, len(rows))
	for _, row := range rows {
		rule := models.AssignmentRule{
			ID:                 row.ID,
			CategoryID:         row.CategoryID,
			AssignmentType:     row.AssignmentType,
			TargetDepartmentID: row.TargetDepartmentID,
			TargetAgentID:      row.TargetAgentID,
			FallbackTo:         row.FallbackTo,
			Priority:           row.Priority,
		}
		if row.Conditions.Valid && row.Conditions.String != "" {
			conditions := &models.RuleConditions{}
			if err := json.Unmarshal([]byte(row.Conditions.String), conditions); err != nil {
				return nil, fmt.Errorf("invalid conditions on assignment rule %d: %w", row.ID, err)
			}
			rule.Conditions = conditions
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
