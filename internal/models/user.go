package models

import (
	"time"
)

// Department groups agents for assignment purposes.
type Department struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Agent is the availability snapshot the assignment engine reads at decision
// time. OpenTicketCount is derived from the ticket store, not persisted.
type Agent struct {
	ID                   int       `json:"id" db:"id"`
	Email                string    `json:"email" db:"email"`
	Name                 string    `json:"name" db:"name"`
	DepartmentID         *int      `json:"department_id,omitempty" db:"department_id"`
	IsAgent              bool      `json:"is_agent" db:"is_agent"`
	IsAvailable          bool      `json:"is_available" db:"is_available"`
	MaxConcurrentTickets int       `json:"max_concurrent_tickets" db:"max_concurrent_tickets"`
	AssignmentPriority   int       `json:"assignment_priority" db:"assignment_priority"`
	LastAssignmentAt     time.Time `json:"last_assignment_at" db:"last_assignment_at"`

	// Joined fields
	OpenTicketCount int `json:"open_ticket_count" db:"open_ticket_count"`
}
