// Package assignment implements category-scoped auto-assignment of newly
// created tickets to agents.
package assignment

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

// Result is the structured outcome of one assignment attempt. A failed
// attempt is not an error: tickets may legitimately stay unassigned.
type Result struct {
	Success    bool
	AssignedTo int
	Method     string
	Reason     string
	Err        error
}

// Engine evaluates assignment rules against a ticket and persists the
// winning agent. The candidate read and the lastAssignmentAt write are not
// serialized against concurrent runs; concurrent ticket creation can
// double-assign an agent, which is acceptable for soft load balancing.
type Engine struct {
	rules   RuleProvider
	agents  repository.AgentStore
	tickets repository.TicketStore
	logger  *log.Logger
	now     func() time.Time
}

// RuleProvider resolves the rule list for a ticket category. The repository
// LookupStore satisfies it, as does the file-backed provider in rules.go.
type RuleProvider interface {
	RulesForCategory(ctx context.Context, categoryID int) ([]models.AssignmentRule, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// withClock overrides the engine's notion of now, for tests.
func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an assignment engine.
func NewEngine(rules RuleProvider, agents repository.AgentStore, tickets repository.TicketStore, opts ...Option) *Engine {
	e := &Engine{
		rules:   rules,
		agents:  agents,
		tickets: tickets,
		logger:  log.New(io.Discard, "", 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AssignTicket runs rule selection and strategy execution for the ticket.
func (e *Engine) AssignTicket(ctx context.Context, ticket *models.Ticket) Result {
	rules, err := e.rules.RulesForCategory(ctx, ticket.CategoryID)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to load assignment rules: %w", err)}
	}
	if len(rules) == 0 {
		return Result{Reason: "no rules configured"}
	}

	rule := selectRule(rules, ticket)
	if rule == nil {
		return Result{Reason: "no rule conditions matched"}
	}

	agentID, err := e.execute(ctx, rule, ticket)
	if err != nil {
		return Result{Method: rule.AssignmentType, Err: err}
	}
	if agentID == 0 {
		return Result{Method: rule.AssignmentType, Reason: "no eligible agent"}
	}

	now := e.now()
	if err := e.tickets.Assign(ctx, ticket.ID, agentID, rule.AssignmentType, now); err != nil {
		return Result{Method: rule.AssignmentType, Err: fmt.Errorf("failed to persist assignment: %w", err)}
	}
	if err := e.agents.UpdateLastAssignment(ctx, agentID, now); err != nil {
		// The assignment itself stuck; only the rotation timestamp is stale.
		e.logf("assignment: failed to update rotation timestamp for agent %d: %v", agentID, err)
	}
	ticket.AssignedTo = &agentID
	ticket.AssignedAt = &now
	return Result{Success: true, AssignedTo: agentID, Method: rule.AssignmentType}
}

// selectRule sorts by priority descending and returns the first rule whose
// conditions match the ticket. Rules without conditions match everything.
func selectRule(rules []models.AssignmentRule, ticket *models.Ticket) *models.AssignmentRule {
	sorted := make([]models.AssignmentRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	for i := range sorted {
		if sorted[i].Conditions.Matches(ticket) {
			return &sorted[i]
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, rule *models.AssignmentRule, ticket *models.Ticket) (int, error) {
	switch rule.AssignmentType {
	case models.AssignmentTypeDepartment:
		return e.assignDepartment(ctx, rule)
	case models.AssignmentTypeAgent:
		return e.assignAgent(ctx, rule)
	case models.AssignmentTypeRoundRobin:
		deptID, err := resolveDepartment(rule, ticket)
		if err != nil {
			return 0, err
		}
		return e.pickRoundRobin(ctx, deptID)
	case models.AssignmentTypeWorkloadBalance:
		deptID, err := resolveDepartment(rule, ticket)
		if err != nil {
			return 0, err
		}
		return e.pickWorkloadBalance(ctx, deptID)
	default:
		return 0, fmt.Errorf("unknown assignment type %q", rule.AssignmentType)
	}
}

func (e *Engine) assignDepartment(ctx context.Context, rule *models.AssignmentRule) (int, error) {
	if rule.TargetDepartmentID == nil {
		return 0, fmt.Errorf("department rule has no target department")
	}
	agentID, err := e.pickRoundRobin(ctx, *rule.TargetDepartmentID)
	if err != nil || agentID != 0 {
		return agentID, err
	}
	return e.fallback(ctx, rule, *rule.TargetDepartmentID)
}

func (e *Engine) assignAgent(ctx context.Context, rule *models.AssignmentRule) (int, error) {
	if rule.TargetAgentID == nil {
		return 0, fmt.Errorf("agent rule has no target agent")
	}
	agent, err := e.agents.GetAgent(ctx, *rule.TargetAgentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load target agent %d: %w", *rule.TargetAgentID, err)
	}
	if !agent.IsAgent || !agent.IsAvailable {
		return 0, nil
	}
	if agent.MaxConcurrentTickets > 0 && agent.OpenTicketCount >= agent.MaxConcurrentTickets {
		return 0, nil
	}
	return agent.ID, nil
}

// pickRoundRobin selects the agent with the oldest lastAssignmentAt. The
// store returns candidates already sorted oldest first.
func (e *Engine) pickRoundRobin(ctx context.Context, departmentID int) (int, error) {
	agents, err := e.agents.AvailableAgentsByDepartment(ctx, departmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load agents for department %d: %w", departmentID, err)
	}
	if len(agents) == 0 {
		return 0, nil
	}
	return agents[0].ID, nil
}

// pickWorkloadBalance selects the agent with the fewest open tickets,
// preferring the higher assignmentPriority on ties.
func (e *Engine) pickWorkloadBalance(ctx context.Context, departmentID int) (int, error) {
	agents, err := e.agents.AvailableAgentsByDepartment(ctx, departmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load agents for department %d: %w", departmentID, err)
	}
	if len(agents) == 0 {
		return 0, nil
	}
	best := agents[0]
	for _, a := range agents[1:] {
		if a.OpenTicketCount < best.OpenTicketCount {
			best = a
			continue
		}
		if a.OpenTicketCount == best.OpenTicketCount && a.AssignmentPriority > best.AssignmentPriority {
			best = a
		}
	}
	return best.ID, nil
}

func (e *Engine) fallback(ctx context.Context, rule *models.AssignmentRule, departmentID int) (int, error) {
	switch rule.FallbackTo {
	case models.FallbackRoundRobin:
		return e.pickRoundRobin(ctx, departmentID)
	case models.FallbackWorkloadBalance:
		return e.pickWorkloadBalance(ctx, departmentID)
	case models.FallbackNone, "":
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown fallback strategy %q", rule.FallbackTo)
	}
}

func resolveDepartment(rule *models.AssignmentRule, ticket *models.Ticket) (int, error) {
	if rule.TargetDepartmentID != nil {
		return *rule.TargetDepartmentID, nil
	}
	if ticket.SubmitterDepartmentID != nil {
		return *ticket.SubmitterDepartmentID, nil
	}
	return 0, fmt.Errorf("no department context for %s assignment", rule.AssignmentType)
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
