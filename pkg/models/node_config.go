package models

import (
	"encoding/json"
	"fmt"
)

// ConditionType selects how a condition node resolves its branches.
type ConditionType string

const (
	ConditionTypeKeyword  ConditionType = "keyword"
	ConditionTypeVariable ConditionType = "variable"
	ConditionTypeTime     ConditionType = "time"
	ConditionTypeTag      ConditionType = "tag"
	ConditionTypeIntent   ConditionType = "intent"
)

// ActionType is the side effect of an action node.
type ActionType string

const (
	ActionTypeSetVariable ActionType = "set_variable"
	ActionTypeAddTag      ActionType = "add_tag"
	ActionTypeRemoveTag   ActionType = "remove_tag"
)

type MessageConfig struct {
	Text         string `json:"text"`
	DelaySeconds int    `json:"delay_seconds,omitempty"`
}

type ConditionConfig struct {
	ConditionType ConditionType `json:"condition_type"`
	Variable      string        `json:"variable,omitempty"`
	Timezone      string        `json:"timezone,omitempty"`
	Branches      []Branch      `json:"branches"`
}

type ActionConfig struct {
	ActionType ActionType `json:"action_type"`
	Variable   string     `json:"variable,omitempty"`
	Value      any        `json:"value,omitempty"`
	Tag        string     `json:"tag,omitempty"`
}

type DelayConfig struct {
	Seconds int `json:"seconds"`
}

type EscalationConfig struct {
	Reason     string     `json:"reason,omitempty"`
	Department Department `json:"department,omitempty"`
	Priority   string     `json:"priority,omitempty"`
}

type EndConfig struct {
	Message string `json:"message,omitempty"`
}

// DecodeConfig converts the node's loose config map into the typed struct
// pointed to by out.
func (n *Node) DecodeConfig(out any) error {
	if n.Data.Config == nil {
		return nil
	}

	raw, err := json.Marshal(n.Data.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config of node %s: %w", n.ID, err)
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("failed to decode config of node %s: %w", n.ID, err)
	}

	return nil
}

// ConditionConfig decodes the node's config as a condition payload.
func (n *Node) ConditionConfig() (ConditionConfig, error) {
	var cfg ConditionConfig

	err := n.DecodeConfig(&cfg)

	return cfg, err
}
