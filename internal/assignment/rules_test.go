package assignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

func TestParseRules(t *testing.T) {
	raw := []byte(`{
		"rules": [
			{
				"category_id": 1,
				"assignment_type": "department",
				"target_department_id": 2,
				"fallback_to": "round_robin",
				"priority": 10,
				"conditions": {"priorities": ["High"], "tags": ["vip"]}
			},
			{"category_id": 1, "assignment_type": "workload_balance", "target_department_id": 2},
			{"category_id": 3, "assignment_type": "agent", "target_agent_id": 7}
		]
	}`)
	provider, err := ParseRules(raw)
	require.NoError(t, err)

	rules, err := provider.RulesForCategory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.AssignmentTypeDepartment, rules[0].AssignmentType)
	assert.Equal(t, models.FallbackRoundRobin, rules[0].FallbackTo)
	require.NotNil(t, rules[0].Conditions)
	assert.Equal(t, []string{"High"}, rules[0].Conditions.Priorities)

	empty, err := provider.RulesForCategory(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseRulesRejectsUnknownStrategy(t *testing.T) {
	raw := []byte(`{"rules": [{"category_id": 1, "assignment_type": "coin_flip"}]}`)
	_, err := ParseRules(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rule file")
}

func TestParseRulesRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"rules": [{"category_id": 1, "assignment_type": "agent", "target": 7}]}`)
	_, err := ParseRules(raw)
	require.Error(t, err)
}
