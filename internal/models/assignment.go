package models

import (
	"strings"
)

// Assignment strategies.
const (
	AssignmentTypeDepartment      = "department"
	AssignmentTypeAgent           = "agent"
	AssignmentTypeRoundRobin      = "round_robin"
	AssignmentTypeWorkloadBalance = "workload_balance"
)

// Fallback strategies used when the primary strategy finds no agent.
const (
	FallbackRoundRobin      = "round_robin"
	FallbackWorkloadBalance = "workload_balance"
	FallbackNone            = "none"
)

// RuleConditions is the optional predicate attached to an assignment rule.
// A rule with empty conditions matches every ticket.
type RuleConditions struct {
	Priorities   []string          `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	Tags         []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
}

// IsEmpty reports whether the conditions constrain anything at all.
func (c *RuleConditions) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.Priorities) == 0 && len(c.Tags) == 0 && len(c.CustomFields) == 0
}

// Matches evaluates the conditions against a ticket. Priority names match
// case-insensitively, tags match on intersection, and custom fields require
// equality for every configured key.
func (c *RuleConditions) Matches(t *Ticket) bool {
	if c.IsEmpty() {
		return true
	}
	if t == nil {
		return false
	}
	if len(c.Priorities) > 0 && !containsFold(c.Priorities, t.PriorityName) {
		return false
	}
	if len(c.Tags) > 0 && !intersects(c.Tags, t.Tags) {
		return false
	}
	for key, want := range c.CustomFields {
		if t.CustomFields[key] != want {
			return false
		}
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// AssignmentRule is a category-scoped auto-assignment rule. Rules are
// read-only configuration for the engine; higher Priority wins.
type AssignmentRule struct {
	ID                 int             `json:"id" db:"id"`
	CategoryID         int             `json:"category_id" db:"category_id"`
	AssignmentType     string          `json:"assignment_type" db:"assignment_type"`
	TargetDepartmentID *int            `json:"target_department_id,omitempty" db:"target_department_id"`
	TargetAgentID      *int            `json:"target_agent_id,omitempty" db:"target_agent_id"`
	FallbackTo         string          `json:"fallback_to" db:"fallback_to"`
	Priority           int             `json:"priority" db:"priority"`
	Conditions         *RuleConditions `json:"conditions,omitempty" db:"-"`
}
