package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deskpilot-io/deskpilot/internal/database"
	"github.com/deskpilot-io/deskpilot/internal/models"
)

const autoResponseColumns = `id, ticket_id, template_id, response_id, to_email,
	subject, body, thread_id, sent_at, status`

// AutoResponseRepository persists automatic acknowledgements and answers the
// classifier's correlation lookups.
type AutoResponseRepository struct {
	db *sqlx.DB
}

func NewAutoResponseRepository(db *sqlx.DB) *AutoResponseRepository {
	return &AutoResponseRepository{db: db}
}

func (r *AutoResponseRepository) Insert(ctx context.Context, ar *models.AutoResponse) error {
	if ar.SentAt.IsZero() {
		ar.SentAt = time.Now()
	}
	query := `
		INSERT INTO auto_responses (
			ticket_id, template_id, response_id, to_email, subject, body,
			thread_id, sent_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	id, err := insertID(ctx, r.db, query,
		ar.TicketID, ar.TemplateID, ar.ResponseID, ar.ToEmail,
		ar.Subject, ar.Body, ar.ThreadID, ar.SentAt, ar.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auto response: %w", err)
	}
	ar.ID = id
	return nil
}

// FindByResponseID resolves a correlation token to a live auto-response.
func (r *AutoResponseRepository) FindByResponseID(ctx context.Context, responseID string) (*models.AutoResponse, error) {
	responseID = strings.TrimSpace(responseID)
	if responseID == "" {
		return nil, ErrNotFound
	}
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s FROM auto_responses WHERE response_id = $1`, autoResponseColumns))
	return r.getOne(ctx, query, responseID)
}

// FindByThreadToken matches a thread id or response id token against stored
// auto-responses; thread headers carry either depending on the client.
func (r *AutoResponseRepository) FindByThreadToken(ctx context.Context, token string) (*models.AutoResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s FROM auto_responses WHERE thread_id = $1 OR response_id = $2
		ORDER BY sent_at DESC LIMIT 1`, autoResponseColumns))
	return r.getOne(ctx, query, token, token)
}

// LatestForRecipient returns the most recent auto-response sent to email at
// or after since.
func (r *AutoResponseRepository) LatestForRecipient(ctx context.Context, email string, since time.Time) (*models.AutoResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrNotFound
	}
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s FROM auto_responses WHERE LOWER(to_email) = $1 AND sent_at >= $2
		ORDER BY sent_at DESC LIMIT 1`, autoResponseColumns))
	return r.getOne(ctx, query, email, since)
}

func (r *AutoResponseRepository) getOne(ctx context.Context, query string, args ...any) (*models.AutoResponse, error) {
	ar := &models.AutoResponse{}
	err := sqlx.GetContext(ctx, r.db, ar, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auto responses: %w", err)
	}
	return ar, nil
}

// FollowupRepository persists follow-up linkage rows.
type FollowupRepository struct {
	db *sqlx.DB
}

func NewFollowupRepository(db *sqlx.DB) *FollowupRepository {
	return &FollowupRepository{db: db}
}

func (r *FollowupRepository) Insert(ctx context.Context, followup *models.EmailFollowup) error {
	if followup.ProcessedAt.IsZero() {
		followup.ProcessedAt = time.Now()
	}
	query := `
		INSERT INTO email_followups (
			auto_response_id, ticket_id, original_email_id, content,
			processed_at, status
		) VALUES ($1, $2, $3, $4, $5, $6)`
	id, err := insertID(ctx, r.db, query,
		followup.AutoResponseID, followup.TicketID, followup.OriginalEmailID,
		followup.Content, followup.ProcessedAt, followup.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert email followup: %w", err)
	}
	followup.ID = id
	return nil
}
