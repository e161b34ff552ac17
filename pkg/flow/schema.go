package flow

import (
	"fmt"
	"strings"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var branchSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":       map[string]any{"type": "string", "minLength": 1},
		"label":    map[string]any{"type": "string"},
		"value":    map[string]any{"type": "string"},
		"keywords": map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
	},
	"required": []string{"id"},
}

// configSchemas holds the JSON schema of each node type's config payload.
var configSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeStart: {
		"type": "object",
	},
	models.NodeTypeMessage: {
		"type": "object",
		"properties": map[string]any{
			"text":          map[string]any{"type": "string", "minLength": 1},
			"delay_seconds": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"text"},
	},
	models.NodeTypeCondition: {
		"type": "object",
		"properties": map[string]any{
			"condition_type": map[string]any{
				"type": "string",
				"enum": []string{"keyword", "variable", "time", "tag", "intent"},
			},
			"variable": map[string]any{"type": "string"},
			"timezone": map[string]any{"type": "string"},
			"branches": map[string]any{
				"type":     "array",
				"minItems": 2,
				"items":    branchSchema,
			},
		},
		"required": []string{"condition_type", "branches"},
	},
	models.NodeTypeAction: {
		"type": "object",
		"properties": map[string]any{
			"action_type": map[string]any{
				"type": "string",
				"enum": []string{"set_variable", "add_tag", "remove_tag"},
			},
			"variable": map[string]any{"type": "string"},
			"tag":      map[string]any{"type": "string"},
		},
		"required": []string{"action_type"},
	},
	models.NodeTypeDelay: {
		"type": "object",
		"properties": map[string]any{
			"seconds": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"seconds"},
	},
	models.NodeTypeEscalation: {
		"type": "object",
		"properties": map[string]any{
			"reason":     map[string]any{"type": "string"},
			"department": map[string]any{"type": "string"},
			"priority":   map[string]any{"type": "string", "enum": []string{"", "low", "normal", "high", "urgent"}},
		},
	},
	models.NodeTypeEnd: {
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
	},
}

// ConfigSchema returns the JSON schema for the config of a node type.
func ConfigSchema(nodeType models.NodeType) (map[string]any, bool) {
	schema, ok := configSchemas[nodeType]

	return schema, ok
}

// validateConfig checks a node's config against its type schema.
func validateConfig(node *models.Node) error {
	schema, ok := configSchemas[node.Type]
	if !ok {
		return fmt.Errorf("unknown node type %q", node.Type)
	}

	config := node.Data.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config: %s", strings.Join(details, "; "))
	}

	return nil
}
