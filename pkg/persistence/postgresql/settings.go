package postgresql

import (
	"context"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/lib/pq"
)

// SettingRepository handles the system_settings table.
type SettingRepository struct {
	repository
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting

	err := r.db.QueryRowContext(ctx,
		"SELECT key, value, updated_at FROM system_settings WHERE key = $1", key,
	).Scan(&setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		return nil, notFoundOr("Get", "setting", key, err, persistence.ErrSettingNotFound)
	}

	return &setting, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	setting := &models.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	query := `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, setting.Key, setting.Value, setting.UpdatedAt)
	if err != nil {
		return nil, persistence.NewRecordError("Set", "setting", key, err)
	}

	return setting, nil
}

// BehaviorConfigRepository handles the ai_behavior_config table.
type BehaviorConfigRepository struct {
	repository
}

func (r *BehaviorConfigRepository) Get(ctx context.Context, department models.Department) (*models.BehaviorConfig, error) {
	query := `
		SELECT
			department
		  , agent_name
		  , company_name
		  , tone
		  , business_rules
		  , script
		  , custom_instructions
		  , prompt_override
		  , reengagement_hours
		  , updated_at
		FROM ai_behavior_config
		WHERE department = $1
	`

	var (
		config models.BehaviorConfig
		dept   string
		rules  []string
	)

	err := r.db.QueryRowContext(ctx, query, string(department)).Scan(
		&dept,
		&config.AgentName,
		&config.CompanyName,
		&config.Tone,
		pq.Array(&rules),
		&config.Script,
		&config.CustomInstructions,
		&config.PromptOverride,
		&config.ReengagementHours,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr("Get", "behavior config", string(department), err, persistence.ErrBehaviorConfigNotFound)
	}

	config.Department = models.Department(dept)
	config.BusinessRules = nonNil(rules)

	return &config, nil
}

func (r *BehaviorConfigRepository) Save(ctx context.Context, config *models.BehaviorConfig) error {
	config.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO ai_behavior_config (
			department, agent_name, company_name, tone, business_rules, script,
			custom_instructions, prompt_override, reengagement_hours, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (department) DO UPDATE SET
			agent_name = EXCLUDED.agent_name
		  , company_name = EXCLUDED.company_name
		  , tone = EXCLUDED.tone
		  , business_rules = EXCLUDED.business_rules
		  , script = EXCLUDED.script
		  , custom_instructions = EXCLUDED.custom_instructions
		  , prompt_override = EXCLUDED.prompt_override
		  , reengagement_hours = EXCLUDED.reengagement_hours
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		string(config.Department), config.AgentName, config.CompanyName, config.Tone,
		pq.Array(nonNil(config.BusinessRules)), config.Script, config.CustomInstructions,
		config.PromptOverride, config.ReengagementHours, config.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "behavior config", string(config.Department), err)
	}

	return nil
}
