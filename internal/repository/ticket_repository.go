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

const ticketColumns = `t.id, t.number, t.subject, t.body, t.html_body,
	t.category_id, t.priority_id, t.status_id, t.submitter_email,
	t.submitter_department_id, t.assigned_to, t.assigned_at, t.created_at,
	t.updated_at, COALESCE(s.kind, '') AS status_kind`

const ticketFrom = `FROM tickets t LEFT JOIN ticket_statuses s ON s.id = t.status_id`

// TicketRepository is the slice of ticket persistence the pipeline touches.
type TicketRepository struct {
	db *sqlx.DB
}

func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a ticket and derives its human-facing number from the
// generated id (date prefix plus zero-padded id).
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ticket transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tickets (
			number, subject, body, html_body, category_id, priority_id,
			status_id, submitter_email, submitter_department_id, assigned_to,
			assigned_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	id, err := insertID(ctx, tx, query,
		ticket.Number, ticket.Subject, ticket.Body, ticket.HTMLBody,
		ticket.CategoryID, ticket.PriorityID, ticket.StatusID,
		ticket.SubmitterEmail, ticket.SubmitterDepartmentID,
		ticket.AssignedTo, ticket.AssignedAt, ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	ticket.ID = id

	if strings.TrimSpace(ticket.Number) == "" {
		ticket.Number = fmt.Sprintf("%s%05d", now.Format("20060102"), id)
		update := database.ConvertPlaceholders(`UPDATE tickets SET number = $1 WHERE id = $2`)
		if _, err := tx.ExecContext(ctx, update, ticket.Number, id); err != nil {
			return fmt.Errorf("failed to set ticket number: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id int) (*models.Ticket, error) {
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s %s WHERE t.id = $1`, ticketColumns, ticketFrom))
	return r.getOne(ctx, query, id)
}

func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrNotFound
	}
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s %s WHERE t.number = $1`, ticketColumns, ticketFrom))
	return r.getOne(ctx, query, number)
}

// UpdateStatus changes the ticket status and writes the history row in the
// same transaction; both land or neither does.
func (r *TicketRepository) UpdateStatus(ctx context.Context, ticketID, statusID int, note string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin status transaction: %w", err)
	}
	defer tx.Rollback()

	var fromStatus int
	sel := database.ConvertPlaceholders(`SELECT status_id FROM tickets WHERE id = $1`)
	if err := sqlx.GetContext(ctx, tx, &fromStatus, sel, ticketID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read ticket %d status: %w", ticketID, err)
	}

	now := time.Now()
	upd := database.ConvertPlaceholders(
		`UPDATE tickets SET status_id = $1, updated_at = $2 WHERE id = $3`)
	if _, err := tx.ExecContext(ctx, upd, statusID, now, ticketID); err != nil {
		return fmt.Errorf("failed to update ticket %d status: %w", ticketID, err)
	}

	hist := `
		INSERT INTO ticket_status_history (
			ticket_id, from_status_id, to_status_id, note, created_at
		) VALUES ($1, $2, $3, $4, $5)`
	if _, err := insertID(ctx, tx, hist, ticketID, fromStatus, statusID, note, now); err != nil {
		return fmt.Errorf("failed to insert status history for ticket %d: %w", ticketID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}
	return nil
}

// Assign persists the assignee together with a history entry naming the
// assignment method.
func (r *TicketRepository) Assign(ctx context.Context, ticketID, agentID int, method string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer tx.Rollback()

	upd := database.ConvertPlaceholders(`
		UPDATE tickets SET assigned_to = $1, assigned_at = $2, updated_at = $3 WHERE id = $4`)
	if _, err := tx.ExecContext(ctx, upd, agentID, at, at, ticketID); err != nil {
		return fmt.Errorf("failed to assign ticket %d: %w", ticketID, err)
	}

	note := fmt.Sprintf("auto-assigned to agent %d via %s", agentID, method)
	hist := `
		INSERT INTO ticket_status_history (
			ticket_id, from_status_id, to_status_id, note, created_at
		) VALUES ($1, NULL, NULL, $2, $3)`
	if _, err := insertID(ctx, tx, hist, ticketID, note, at); err != nil {
		return fmt.Errorf("failed to insert assignment history for ticket %d: %w", ticketID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}
	return nil
}

func (r *TicketRepository) getOne(ctx context.Context, query string, args ...any) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	err := sqlx.GetContext(ctx, r.db, ticket, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	return ticket, nil
}

// CommentRepository appends ticket comments.
type CommentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO ticket_comments (
			ticket_id, body, html_body, author_email, is_internal, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`
	id, err := insertID(ctx, r.db, query,
		comment.TicketID, comment.Body, comment.HTMLBody,
		comment.AuthorEmail, comment.IsInternal, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	comment.ID = id
	return nil
}

// AttachmentRepository persists ticket attachments.
type AttachmentRepository struct {
	db *sqlx.DB
}

func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO ticket_attachments (
			ticket_id, comment_id, filename, content_type, size_bytes,
			content, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	id, err := insertID(ctx, r.db, query,
		attachment.TicketID, attachment.CommentID, attachment.Filename,
		attachment.ContentType, attachment.SizeBytes, attachment.Content,
		attachment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	attachment.ID = id
	return nil
}
