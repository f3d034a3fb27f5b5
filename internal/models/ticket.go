package models

import (
	"time"
)

// Status kinds group concrete status rows into lifecycle buckets.
const (
	StatusKindOpen     = "open"
	StatusKindResolved = "resolved"
	StatusKindClosed   = "closed"
)

// Category classifies tickets and owns the assignment rule configuration.
type Category struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Priority is a ticket priority level.
type Priority struct {
	ID        int    `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	IsDefault bool   `json:"is_default" db:"is_default"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

// Status is a ticket workflow state. Kind is one of the StatusKind constants.
type Status struct {
	ID        int    `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Kind      string `json:"kind" db:"kind"`
	IsDefault bool   `json:"is_default" db:"is_default"`
}

// Ticket is a support ticket. The pipeline creates tickets for NEW messages
// and resolves existing ones for REPLY/FOLLOWUP messages.
type Ticket struct {
	ID                    int        `json:"id" db:"id"`
	Number                string     `json:"number" db:"number"`
	Subject               string     `json:"subject" db:"subject"`
	Body                  string     `json:"body" db:"body"`
	HTMLBody              *string    `json:"html_body,omitempty" db:"html_body"`
	CategoryID            int        `json:"category_id" db:"category_id"`
	PriorityID            int        `json:"priority_id" db:"priority_id"`
	StatusID              int        `json:"status_id" db:"status_id"`
	SubmitterEmail        string     `json:"submitter_email" db:"submitter_email"`
	SubmitterDepartmentID *int       `json:"submitter_department_id,omitempty" db:"submitter_department_id"`
	AssignedTo            *int       `json:"assigned_to,omitempty" db:"assigned_to"`
	AssignedAt            *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`

	// Joined fields
	StatusKind   string            `json:"status_kind,omitempty" db:"status_kind"`
	PriorityName string            `json:"priority_name,omitempty" db:"-"`
	Tags         []string          `json:"tags,omitempty" db:"-"`
	CustomFields map[string]string `json:"custom_fields,omitempty" db:"-"`
}

// IsLive reports whether the ticket still accepts submitter traffic. An
// unknown kind counts as live so a missing status row never drops mail.
func (t *Ticket) IsLive() bool {
	return t.StatusKind != StatusKindResolved && t.StatusKind != StatusKindClosed
}

// Comment is a message appended to a ticket thread. Internal comments are
// never visible to the submitter; the email pipeline only writes public ones.
type Comment struct {
	ID          int       `json:"id" db:"id"`
	TicketID    int       `json:"ticket_id" db:"ticket_id"`
	Body        string    `json:"body" db:"body"`
	HTMLBody    *string   `json:"html_body,omitempty" db:"html_body"`
	AuthorEmail string    `json:"author_email" db:"author_email"`
	IsInternal  bool      `json:"is_internal" db:"is_internal"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Attachment is a file persisted against a ticket or comment. Only parts with
// an explicit "attachment" disposition land here; inline images stay embedded
// in the HTML body.
type Attachment struct {
	ID          int       `json:"id" db:"id"`
	TicketID    int       `json:"ticket_id" db:"ticket_id"`
	CommentID   *int      `json:"comment_id,omitempty" db:"comment_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	Content     []byte    `json:"-" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// StatusHistory records ticket state transitions and assignment events. It is
// written in the same transaction as the ticket update it describes.
type StatusHistory struct {
	ID           int       `json:"id" db:"id"`
	TicketID     int       `json:"ticket_id" db:"ticket_id"`
	FromStatusID *int      `json:"from_status_id,omitempty" db:"from_status_id"`
	ToStatusID   *int      `json:"to_status_id,omitempty" db:"to_status_id"`
	Note         string    `json:"note" db:"note"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
