package models

import (
	"time"
)

// Email log direction.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// Inbound message classification.
const (
	EmailTypeNew      = "NEW"
	EmailTypeReply    = "REPLY"
	EmailTypeFollowup = "FOLLOWUP"
)

// Email log status values.
const (
	EmailStatusProcessing = "PROCESSING"
	EmailStatusProcessed  = "PROCESSED"
	EmailStatusSent       = "SENT"
	EmailStatusFailed     = "FAILED"
	EmailStatusError      = "ERROR"
	EmailStatusDelivered  = "DELIVERED"
	EmailStatusBounced    = "BOUNCED"
)

// EmailLogEntry is the audit row recorded for every inbound and outbound
// message. MessageID carries a unique constraint; it is NULL only for
// messages that could not be parsed at all.
type EmailLogEntry struct {
	ID          int        `json:"id" db:"id"`
	MessageID   *string    `json:"message_id,omitempty" db:"message_id"`
	Direction   string     `json:"direction" db:"direction"`
	Type        *string    `json:"type,omitempty" db:"type"`
	FromAddress string     `json:"from_address" db:"from_address"`
	ToAddress   string     `json:"to_address" db:"to_address"`
	CCAddress   *string    `json:"cc_address,omitempty" db:"cc_address"`
	BCCAddress  *string    `json:"bcc_address,omitempty" db:"bcc_address"`
	Subject     string     `json:"subject" db:"subject"`
	Body        string     `json:"body" db:"body"`
	HTMLBody    *string    `json:"html_body,omitempty" db:"html_body"`
	Status      string     `json:"status" db:"status"`
	Error       *string    `json:"error,omitempty" db:"error"`
	TicketID    *int       `json:"ticket_id,omitempty" db:"ticket_id"`
	ThreadID    *string    `json:"thread_id,omitempty" db:"thread_id"`
	InReplyTo   *string    `json:"in_reply_to,omitempty" db:"in_reply_to"`
	References  *string    `json:"references,omitempty" db:"reference_ids"`
	ReceivedAt  *time.Time `json:"received_at,omitempty" db:"received_at"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	RawMeta     *string    `json:"raw_meta,omitempty" db:"raw_meta"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// AutoResponse records an automatic acknowledgement sent for a newly created
// ticket. ResponseID is embedded in the outbound subject and body so replies
// can be correlated back to the ticket.
type AutoResponse struct {
	ID         int       `json:"id" db:"id"`
	TicketID   int       `json:"ticket_id" db:"ticket_id"`
	TemplateID *int      `json:"template_id,omitempty" db:"template_id"`
	ResponseID string    `json:"response_id" db:"response_id"`
	ToEmail    string    `json:"to_email" db:"to_email"`
	Subject    string    `json:"subject" db:"subject"`
	Body       string    `json:"body" db:"body"`
	ThreadID   *string   `json:"thread_id,omitempty" db:"thread_id"`
	SentAt     time.Time `json:"sent_at" db:"sent_at"`
	Status     string    `json:"status" db:"status"`
}

// Followup status values.
const (
	FollowupStatusProcessed = "PROCESSED"
	FollowupStatusFailed    = "FAILED"
	FollowupStatusPending   = "PENDING"
	FollowupStatusIgnored   = "IGNORED"
)

// EmailFollowup links an inbound reply back to the auto-response it answers.
type EmailFollowup struct {
	ID              int       `json:"id" db:"id"`
	AutoResponseID  int       `json:"auto_response_id" db:"auto_response_id"`
	TicketID        int       `json:"ticket_id" db:"ticket_id"`
	OriginalEmailID int       `json:"original_email_id" db:"original_email_id"`
	Content         string    `json:"content" db:"content"`
	ProcessedAt     time.Time `json:"processed_at" db:"processed_at"`
	Status          string    `json:"status" db:"status"`
}
