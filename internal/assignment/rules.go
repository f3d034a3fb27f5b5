package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/deskpilot-io/deskpilot/internal/models"
)

// rulesSchema validates operator-supplied rule files at load time so a typo
// in a strategy name fails fast instead of surfacing mid-assignment.
const rulesSchema = `{
	"type": "object",
	"required": ["rules"],
	"properties": {
		"rules": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["category_id", "assignment_type"],
				"properties": {
					"category_id": {"type": "integer", "minimum": 1},
					"assignment_type": {
						"type": "string",
						"enum": ["department", "agent", "round_robin", "workload_balance"]
					},
					"target_department_id": {"type": "integer", "minimum": 1},
					"target_agent_id": {"type": "integer", "minimum": 1},
					"fallback_to": {
						"type": "string",
						"enum": ["round_robin", "workload_balance", "none"]
					},
					"priority": {"type": "integer"},
					"conditions": {
						"type": "object",
						"properties": {
							"priorities": {"type": "array", "items": {"type": "string"}},
							"tags": {"type": "array", "items": {"type": "string"}},
							"custom_fields": {
								"type": "object",
								"additionalProperties": {"type": "string"}
							}
						},
						"additionalProperties": false
					}
				},
				"additionalProperties": false
			}
		}
	}
}`

type rulesFile struct {
	Rules []models.AssignmentRule `json:"rules"`
}

// FileRuleProvider serves assignment rules from a JSON file loaded once at
// startup. It satisfies RuleProvider for deployments that keep rule
// configuration outside the database.
type FileRuleProvider struct {
	byCategory map[int][]models.AssignmentRule
}

// LoadRuleFile parses and validates a rule file.
func LoadRuleFile(path string) (*FileRuleProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules validates raw JSON rule configuration against the schema and
// indexes the rules by category.
func ParseRules(raw []byte) (*FileRuleProvider, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rulesSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate rule file: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("invalid rule file: %s", strings.Join(problems, "; "))
	}

	var file rulesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to decode rule file: %w", err)
	}

	p := &FileRuleProvider{byCategory: make(map[int][]models.AssignmentRule)}
	for _, rule := range file.Rules {
		p.byCategory[rule.CategoryID] = append(p.byCategory[rule.CategoryID], rule)
	}
	return p, nil
}

// RulesForCategory returns the configured rules for a category. A category
// with no rules returns an empty list, never an error.
func (p *FileRuleProvider) RulesForCategory(ctx context.Context, categoryID int) ([]models.AssignmentRule, error) {
	rules := p.byCategory[categoryID]
	out := make([]models.AssignmentRule, len(rules))
	copy(out, rules)
	return out, nil
}
