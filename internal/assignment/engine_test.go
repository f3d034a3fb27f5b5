package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot-io/deskpilot/internal/models"
	"github.com/deskpilot-io/deskpilot/internal/repository"
)

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) (*repository.MemoryLookupRepository, *repository.MemoryAgentRepository, *repository.MemoryTicketRepository) {
	t.Helper()
	return repository.NewMemoryLookupRepository(), repository.NewMemoryAgentRepository(), repository.NewMemoryTicketRepository()
}

func createTicket(t *testing.T, tickets *repository.MemoryTicketRepository, ticket models.Ticket) *models.Ticket {
	t.Helper()
	if ticket.CategoryID == 0 {
		ticket.CategoryID = 1
	}
	if ticket.SubmitterEmail == "" {
		ticket.SubmitterEmail = "user@corp.com"
	}
	require.NoError(t, tickets.Create(context.Background(), &ticket))
	return &ticket
}

func TestAssignNoRulesConfigured(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	engine := NewEngine(lookup, agents, tickets)
	ticket := createTicket(t, tickets, models.Ticket{Subject: "no rules"})

	result := engine.AssignTicket(context.Background(), ticket)
	assert.False(t, result.Success)
	assert.NoError(t, result.Err)
	assert.Equal(t, "no rules configured", result.Reason)
}

func TestAssignRulePrioritySelection(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	agents.Seed(models.Agent{ID: 10, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true})
	agents.Seed(models.Agent{ID: 20, DepartmentID: intPtr(2), IsAgent: true, IsAvailable: true})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeDepartment, TargetDepartmentID: intPtr(1), Priority: 1,
	})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeDepartment, TargetDepartmentID: intPtr(2), Priority: 5,
	})
	engine := NewEngine(lookup, agents, tickets)
	ticket := createTicket(t, tickets, models.Ticket{Subject: "priority"})

	result := engine.AssignTicket(context.Background(), ticket)
	require.True(t, result.Success)
	assert.Equal(t, 20, result.AssignedTo, "higher-priority rule should win")
}

func TestAssignRuleConditions(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	agents.Seed(models.Agent{ID: 10, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true})
	agents.Seed(models.Agent{ID: 20, DepartmentID: intPtr(2), IsAgent: true, IsAvailable: true})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType:     models.AssignmentTypeDepartment,
		TargetDepartmentID: intPtr(2),
		Priority:           10,
		Conditions:         &models.RuleConditions{Priorities: []string{"High"}},
	})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeDepartment, TargetDepartmentID: intPtr(1), Priority: 1,
	})
	engine := NewEngine(lookup, agents, tickets)

	normal := createTicket(t, tickets, models.Ticket{Subject: "normal", PriorityName: "Normal"})
	result := engine.AssignTicket(context.Background(), normal)
	require.True(t, result.Success)
	assert.Equal(t, 10, result.AssignedTo, "conditioned rule must not match a Normal ticket")

	high := createTicket(t, tickets, models.Ticket{Subject: "high", PriorityName: "high"})
	result = engine.AssignTicket(context.Background(), high)
	require.True(t, result.Success)
	assert.Equal(t, 20, result.AssignedTo, "priority names match case-insensitively")
}

func TestAssignRoundRobinFairness(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []int{1, 2, 3} {
		agents.Seed(models.Agent{
			ID: id, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true,
			LastAssignmentAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeRoundRobin, TargetDepartmentID: intPtr(1),
	})
	engine := NewEngine(lookup, agents, tickets)

	seen := make(map[int]bool)
	for i := 0; i < 3; i++ {
		ticket := createTicket(t, tickets, models.Ticket{Subject: "rr"})
		result := engine.AssignTicket(context.Background(), ticket)
		require.True(t, result.Success, "run %d: %v %s", i, result.Err, result.Reason)
		assert.False(t, seen[result.AssignedTo], "agent %d assigned twice before rotation completed", result.AssignedTo)
		seen[result.AssignedTo] = true
	}
	assert.Len(t, seen, 3, "three assignments should visit all three agents")
}

func TestAssignWorkloadBalanceTieBreak(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	agents.Seed(models.Agent{
		ID: 1, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true,
		OpenTicketCount: 2, AssignmentPriority: 1,
	})
	agents.Seed(models.Agent{
		ID: 2, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true,
		OpenTicketCount: 2, AssignmentPriority: 5,
	})
	agents.Seed(models.Agent{
		ID: 3, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true,
		OpenTicketCount: 4, AssignmentPriority: 9,
	})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeWorkloadBalance, TargetDepartmentID: intPtr(1),
	})
	engine := NewEngine(lookup, agents, tickets)
	ticket := createTicket(t, tickets, models.Ticket{Subject: "wb"})

	result := engine.AssignTicket(context.Background(), ticket)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.AssignedTo, "equal load should break ties toward higher assignment priority")
}

func TestAssignDirectAgentCapacity(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	agents.Seed(models.Agent{
		ID: 7, IsAgent: true, IsAvailable: true, MaxConcurrentTickets: 3, OpenTicketCount: 3,
	})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeAgent, TargetAgentID: intPtr(7),
	})
	engine := NewEngine(lookup, agents, tickets)
	ticket := createTicket(t, tickets, models.Ticket{Subject: "full"})

	result := engine.AssignTicket(context.Background(), ticket)
	assert.False(t, result.Success)
	assert.NoError(t, result.Err)
	assert.Equal(t, "no eligible agent", result.Reason)
}

func TestAssignDepartmentFallback(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	// Nobody available in the target department and no fallback configured.
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType:     models.AssignmentTypeDepartment,
		TargetDepartmentID: intPtr(9),
		FallbackTo:         models.FallbackNone,
	})
	engine := NewEngine(lookup, agents, tickets)
	ticket := createTicket(t, tickets, models.Ticket{Subject: "empty dept"})

	result := engine.AssignTicket(context.Background(), ticket)
	assert.False(t, result.Success)
	assert.Equal(t, "no eligible agent", result.Reason)
}

func TestAssignRoundRobinDerivesSubmitterDepartment(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	agents.Seed(models.Agent{ID: 4, DepartmentID: intPtr(3), IsAgent: true, IsAvailable: true})
	lookup.AddRule(1, models.AssignmentRule{AssignmentType: models.AssignmentTypeRoundRobin})
	engine := NewEngine(lookup, agents, tickets)

	noDept := createTicket(t, tickets, models.Ticket{Subject: "no dept"})
	result := engine.AssignTicket(context.Background(), noDept)
	assert.False(t, result.Success)
	require.Error(t, result.Err)

	withDept := createTicket(t, tickets, models.Ticket{Subject: "submitter dept", SubmitterDepartmentID: intPtr(3)})
	result = engine.AssignTicket(context.Background(), withDept)
	require.True(t, result.Success)
	assert.Equal(t, 4, result.AssignedTo)
}

func TestAssignPersistsAssignmentAndRotation(t *testing.T) {
	lookup, agents, tickets := newFixture(t)
	then := time.Now().Add(-time.Hour)
	agents.Seed(models.Agent{
		ID: 5, DepartmentID: intPtr(1), IsAgent: true, IsAvailable: true, LastAssignmentAt: then,
	})
	lookup.AddRule(1, models.AssignmentRule{
		AssignmentType: models.AssignmentTypeDepartment, TargetDepartmentID: intPtr(1),
	})
	now := time.Now().Truncate(time.Second)
	engine := NewEngine(lookup, agents, tickets, withClock(func() time.Time { return now }))
	ticket := createTicket(t, tickets, models.Ticket{Subject: "persist"})

	result := engine.AssignTicket(context.Background(), ticket)
	require.True(t, result.Success)

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, 5, *stored.AssignedTo)
	require.NotNil(t, stored.AssignedAt)
	assert.True(t, stored.AssignedAt.Equal(now))

	agent, err := agents.GetAgent(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, agent.LastAssignmentAt.Equal(now), "rotation timestamp must advance")

	history := tickets.History()
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Note, "department")
}
