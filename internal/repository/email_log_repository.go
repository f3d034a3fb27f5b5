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

const emailLogColumns = `id, message_id, direction, type, from_address, to_address,
	cc_address, bcc_address, subject, body, html_body, status, error, ticket_id,
	thread_id, in_reply_to, reference_ids, received_at, sent_at, raw_meta,
	created_at, updated_at`

// EmailLogRepository is the SQL-backed audit log.
type EmailLogRepository struct {
	db *sqlx.DB
}

// NewEmailLogRepository builds the repository on the shared connection.
func NewEmailLogRepository(db *sqlx.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// FindByMessageID returns the entry for messageID or ErrNotFound.
func (r *EmailLogRepository) FindByMessageID(ctx context.Context, messageID string) (*models.EmailLogEntry, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, ErrNotFound
	}
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s FROM email_log WHERE message_id = $1`, emailLogColumns))
	entry := &models.EmailLogEntry{}
	err := sqlx.GetContext(ctx, r.db, entry, query, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email log entry: %w", err)
	}
	return entry, nil
}

// Record inserts an entry for an inbound message. A concurrent run may have
// inserted the same message id between lookup and insert; that race resolves
// to the existing row rather than an error. Entries without a message id
// (rejected before one could be extracted) are stored under NULL so the audit
// trail stays complete; they never participate in dedup.
func (r *EmailLogRepository) Record(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, bool, error) {
	if entry.MessageID == nil || strings.TrimSpace(*entry.MessageID) == "" {
		entry.MessageID = nil
		stored, err := r.Insert(ctx, entry)
		if err != nil {
			return nil, false, err
		}
		return stored, true, nil
	}
	if existing, err := r.FindByMessageID(ctx, *entry.MessageID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	stored, err := r.Insert(ctx, entry)
	if err == nil {
		return stored, true, nil
	}
	if database.IsDuplicateKey(err) {
		existing, findErr := r.FindByMessageID(ctx, *entry.MessageID)
		if findErr != nil {
			return nil, false, fmt.Errorf("duplicate message id but re-fetch failed: %w", findErr)
		}
		return existing, false, nil
	}
	return nil, false, err
}

// Insert writes a new audit entry and returns it with the generated id.
func (r *EmailLogRepository) Insert(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, error) {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	query := `
		INSERT INTO email_log (
			message_id, direction, type, from_address, to_address, cc_address,
			bcc_address, subject, body, html_body, status, error, ticket_id,
			thread_id, in_reply_to, reference_ids, received_at, sent_at,
			raw_meta, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)`
	id, err := insertID(ctx, r.db, query,
		entry.MessageID,
		entry.Direction,
		entry.Type,
		entry.FromAddress,
		entry.ToAddress,
		entry.CCAddress,
		entry.BCCAddress,
		entry.Subject,
		entry.Body,
		entry.HTMLBody,
		entry.Status,
		entry.Error,
		entry.TicketID,
		entry.ThreadID,
		entry.InReplyTo,
		entry.References,
		entry.ReceivedAt,
		entry.SentAt,
		entry.RawMeta,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert email log entry: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// InsertUnparsed records a malformed message. MessageID stays NULL so the
// unique constraint does not collide across malformed messages.
func (r *EmailLogRepository) InsertUnparsed(ctx context.Context, entry *models.EmailLogEntry) (*models.EmailLogEntry, error) {
	entry.MessageID = nil
	return r.Insert(ctx, entry)
}

// LinkTicket records the routing outcome on the audit entry.
func (r *EmailLogRepository) LinkTicket(ctx context.Context, id, ticketID int, emailType, status string) error {
	query := database.ConvertPlaceholders(`
		UPDATE email_log SET ticket_id = $1, type = $2, status = $3, error = NULL, updated_at = $4
		WHERE id = $5`)
	if _, err := r.db.ExecContext(ctx, query, ticketID, emailType, status, time.Now(), id); err != nil {
		return fmt.Errorf("failed to link ticket on email log entry %d: %w", id, err)
	}
	return nil
}

// MarkError sets status ERROR with the given reason.
func (r *EmailLogRepository) MarkError(ctx context.Context, id int, reason string) error {
	query := database.ConvertPlaceholders(`
		UPDATE email_log SET status = $1, error = $2, updated_at = $3 WHERE id = $4`)
	if _, err := r.db.ExecContext(ctx, query, models.EmailStatusError, reason, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark email log entry %d as error: %w", id, err)
	}
	return nil
}

// MarkStatus updates the entry status.
func (r *EmailLogRepository) MarkStatus(ctx context.Context, id int, status string) error {
	query := database.ConvertPlaceholders(`
		UPDATE email_log SET status = $1, updated_at = $2 WHERE id = $3`)
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update email log entry %d status: %w", id, err)
	}
	return nil
}
