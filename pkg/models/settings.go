package models

import "time"

// Well-known system_settings keys.
const (
	SettingWebhookToken     = "webhook_token"
	SettingClickUpToken     = "clickup_api_token"
	SettingClickUpListID    = "clickup_list_id"
	SettingN8NWebhookURL    = "n8n_webhook_url"
	SettingElevenLabsAPIKey = "elevenlabs_api_key"
	SettingC2SToken         = "c2s_api_token"
	SettingActiveDepartment = "active_department"
)

// Setting is a key/value row of system_settings.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BehaviorConfig is the AI agent configuration of a department
// (ai_behavior_config).
type BehaviorConfig struct {
	Department         Department `json:"department"`
	AgentName          string     `json:"agent_name"`
	CompanyName        string     `json:"company_name"`
	Tone               string     `json:"tone"`
	BusinessRules      []string   `json:"business_rules"`
	Script             string     `json:"script"`
	CustomInstructions string     `json:"custom_instructions"`
	PromptOverride     string     `json:"prompt_override"`
	ReengagementHours  int        `json:"reengagement_hours"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
