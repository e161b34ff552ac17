// Package prompt builds the system prompt of the AI agent of each department.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/corretor-crm/corretor/pkg/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").ParseFS(templateFS, "templates/*.tmpl"))

const (
	defaultAgentName   = "Assistente"
	defaultCompanyName = "imobiliária"
	defaultTone        = "cordial e profissional"
)

// Config holds everything a prompt is built from.
type Config struct {
	AgentName     string
	CompanyName   string
	Tone          string
	BusinessRules []string
	// Scripts holds the free-text script of each department.
	Scripts map[models.Department]string
	// Overrides replaces the whole prompt of a department when non-blank.
	Overrides          map[models.Department]string
	CustomInstructions string
}

// FromBehavior converts a stored ai_behavior_config row into a Config.
func FromBehavior(behavior models.BehaviorConfig) Config {
	cfg := Config{
		AgentName:          behavior.AgentName,
		CompanyName:        behavior.CompanyName,
		Tone:               behavior.Tone,
		BusinessRules:      behavior.BusinessRules,
		CustomInstructions: behavior.CustomInstructions,
	}

	if behavior.Script != "" {
		cfg.Scripts = map[models.Department]string{behavior.Department: behavior.Script}
	}

	if behavior.PromptOverride != "" {
		cfg.Overrides = map[models.Department]string{behavior.Department: behavior.PromptOverride}
	}

	return cfg
}

// Prompt is a built system prompt.
type Prompt struct {
	Department models.Department `json:"department"`
	Text       string            `json:"text"`
	Tokens     int               `json:"estimated_tokens"`
	Overridden bool              `json:"overridden"`
}

type templateData struct {
	AgentName     string
	CompanyName   string
	Tone          string
	BusinessRules []string
	Script        string
}

// Build returns the prompt of dept. A non-blank override is returned verbatim;
// otherwise the department template is rendered and the custom instructions
// are appended verbatim.
func Build(cfg Config, dept models.Department) (Prompt, error) {
	if !dept.Valid() {
		return Prompt{}, fmt.Errorf("unknown department %q", dept)
	}

	if override := cfg.Overrides[dept]; strings.TrimSpace(override) != "" {
		return Prompt{Department: dept, Text: override, Tokens: EstimateTokens(override), Overridden: true}, nil
	}

	data := templateData{
		AgentName:     orDefault(cfg.AgentName, defaultAgentName),
		CompanyName:   orDefault(cfg.CompanyName, defaultCompanyName),
		Tone:          orDefault(cfg.Tone, defaultTone),
		BusinessRules: rules(cfg.BusinessRules),
		Script:        strings.TrimSpace(cfg.Scripts[dept]),
	}

	var sb strings.Builder

	err := templates.ExecuteTemplate(&sb, string(dept)+".tmpl", data)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to render prompt for %s: %w", dept, err)
	}

	text := strings.TrimRight(sb.String(), "\n")
	if cfg.CustomInstructions != "" {
		text += "\n\n" + cfg.CustomInstructions
	}

	return Prompt{Department: dept, Text: text, Tokens: EstimateTokens(text)}, nil
}

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded up.
func EstimateTokens(text string) int {
	n := len([]rune(text))

	return (n + 3) / 4
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return strings.TrimSpace(value)
}

func rules(in []string) []string {
	out := make([]string, 0, len(in))

	for _, rule := range in {
		if rule = strings.TrimSpace(rule); rule != "" {
			out = append(out, rule)
		}
	}

	return out
}
