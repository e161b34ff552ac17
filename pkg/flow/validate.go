package flow

import (
	"fmt"

	"github.com/corretor-crm/corretor/pkg/models"
)

// Validate checks the structural invariants of a flow: exactly one start
// node, condition nodes with at least two branches, edges between existing
// nodes and node configs matching their schema. Cycles are allowed.
func Validate(flow *models.Flow) error {
	if flow == nil {
		return ValidationErrors{{Message: "flow cannot be nil"}}
	}

	var problems ValidationErrors

	if !flow.Department.Valid() {
		problems = append(problems, ValidationError{Message: fmt.Sprintf("unknown department %q", flow.Department)})
	}

	seen := make(map[string]bool, len(flow.Nodes))
	starts := 0

	for i, node := range flow.Nodes {
		if node == nil || node.ID == "" {
			problems = append(problems, ValidationError{Message: fmt.Sprintf("node at index %d has no id", i)})

			continue
		}

		if seen[node.ID] {
			problems = append(problems, ValidationError{NodeID: node.ID, Message: "duplicate node id"})
		}

		seen[node.ID] = true

		if !node.Type.Valid() {
			problems = append(problems, ValidationError{NodeID: node.ID, Message: fmt.Sprintf("unknown node type %q", node.Type)})

			continue
		}

		if node.Type == models.NodeTypeStart {
			starts++
		}

		if err := validateConfig(node); err != nil {
			problems = append(problems, ValidationError{NodeID: node.ID, Message: err.Error()})

			continue
		}

		if node.Type == models.NodeTypeCondition {
			problems = append(problems, validateCondition(node)...)
		}
	}

	if starts != 1 {
		problems = append(problems, ValidationError{Message: fmt.Sprintf("flow must have exactly one start node, found %d", starts)})
	}

	for i, edge := range flow.Edges {
		if edge == nil {
			problems = append(problems, ValidationError{Message: fmt.Sprintf("edge at index %d is nil", i)})

			continue
		}

		if !seen[edge.Source] {
			problems = append(problems, ValidationError{EdgeID: edge.ID, Message: fmt.Sprintf("unknown source node %q", edge.Source)})
		}

		if !seen[edge.Target] {
			problems = append(problems, ValidationError{EdgeID: edge.ID, Message: fmt.Sprintf("unknown target node %q", edge.Target)})
		}
	}

	if len(problems) > 0 {
		return problems
	}

	return nil
}

func validateCondition(node *models.Node) []ValidationError {
	cfg, err := node.ConditionConfig()
	if err != nil {
		return []ValidationError{{NodeID: node.ID, Message: err.Error()}}
	}

	var problems []ValidationError

	if len(cfg.Branches) < 2 {
		problems = append(problems, ValidationError{NodeID: node.ID, Message: "condition needs at least two branches"})
	}

	ids := make(map[string]bool, len(cfg.Branches))
	for _, branch := range cfg.Branches {
		if ids[branch.ID] {
			problems = append(problems, ValidationError{NodeID: node.ID, Message: fmt.Sprintf("duplicate branch id %q", branch.ID)})
		}

		ids[branch.ID] = true
	}

	if cfg.ConditionType == models.ConditionTypeVariable && cfg.Variable == "" {
		problems = append(problems, ValidationError{NodeID: node.ID, Message: "variable condition needs a variable name"})
	}

	return problems
}
