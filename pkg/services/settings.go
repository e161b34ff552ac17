package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/prompt"
)

// Settings manages system_settings and the per-department AI behavior.
type Settings struct {
	persistence persistence.Persistence
}

func NewSettings(persistence persistence.Persistence) *Settings {
	return &Settings{persistence: persistence}
}

func (s *Settings) Get(ctx context.Context, key string) (*models.Setting, error) {
	return s.persistence.SettingRepository().Get(ctx, key)
}

// Value returns the setting value, or "" when the key is not set.
func (s *Settings) Value(ctx context.Context, key string) (string, error) {
	setting, err := s.persistence.SettingRepository().Get(ctx, key)
	if err != nil {
		if persistence.IsNotFound(err) {
			return "", nil
		}

		return "", err
	}

	return setting.Value, nil
}

func (s *Settings) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, NewValidationError("Set", "INVALID_KEY", "setting key is required", ErrInvalidRequest)
	}

	if key == models.SettingActiveDepartment && value != "" {
		department, err := models.ParseDepartment(value)
		if err != nil {
			return nil, NewValidationError("Set", "INVALID_DEPARTMENT", err.Error(), ErrInvalidDepartment)
		}

		value = string(department)
	}

	return s.persistence.SettingRepository().Set(ctx, key, value)
}

// VerifyWebhookToken compares token with the webhook_token setting in
// constant time. A missing setting rejects every token.
func (s *Settings) VerifyWebhookToken(ctx context.Context, token string) error {
	expected, err := s.Value(ctx, models.SettingWebhookToken)
	if err != nil {
		return fmt.Errorf("failed to load webhook token: %w", err)
	}

	if expected == "" || token == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
		return ErrUnauthorized
	}

	return nil
}

// ActiveDepartment returns the department the operators are working on, if set.
func (s *Settings) ActiveDepartment(ctx context.Context) (models.Department, error) {
	value, err := s.Value(ctx, models.SettingActiveDepartment)
	if err != nil || value == "" {
		return "", err
	}

	return models.Department(value), nil
}

// Behavior returns the AI behavior of department, or an empty config when
// none was saved yet.
func (s *Settings) Behavior(ctx context.Context, department models.Department) (*models.BehaviorConfig, error) {
	if !department.Valid() {
		return nil, NewValidationError("Behavior", "INVALID_DEPARTMENT",
			fmt.Sprintf("invalid department '%s'", department), ErrInvalidDepartment)
	}

	config, err := s.persistence.BehaviorConfigRepository().Get(ctx, department)
	if err != nil {
		if persistence.IsNotFound(err) {
			return &models.BehaviorConfig{Department: department, BusinessRules: []string{}}, nil
		}

		return nil, err
	}

	return config, nil
}

func (s *Settings) SaveBehavior(ctx context.Context, config *models.BehaviorConfig) (*models.BehaviorConfig, error) {
	if !config.Department.Valid() {
		return nil, NewValidationError("SaveBehavior", "INVALID_DEPARTMENT",
			fmt.Sprintf("invalid department '%s'", config.Department), ErrInvalidDepartment)
	}

	if config.ReengagementHours < 0 {
		return nil, NewValidationError("SaveBehavior", "INVALID_REENGAGEMENT_HOURS",
			"reengagement_hours must not be negative", ErrInvalidRequest)
	}

	err := s.persistence.BehaviorConfigRepository().Save(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to save behavior config: %w", err)
	}

	return config, nil
}

// Prompt builds the system prompt of department from its saved behavior.
func (s *Settings) Prompt(ctx context.Context, department models.Department) (prompt.Prompt, error) {
	config, err := s.Behavior(ctx, department)
	if err != nil {
		return prompt.Prompt{}, err
	}

	return prompt.Build(prompt.FromBehavior(*config), department)
}
