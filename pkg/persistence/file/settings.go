package file

import (
	"context"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// SettingRepository stores system_settings rows.
type SettingRepository struct {
	p       *Persistence
	records collection[models.Setting]
}

func (r *SettingRepository) Get(_ context.Context, key string) (*models.Setting, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	setting, err := r.records.read(key)
	if err != nil {
		return nil, notFoundOr("Get", "setting", key, err, persistence.ErrSettingNotFound)
	}

	return setting, nil
}

func (r *SettingRepository) Set(_ context.Context, key, value string) (*models.Setting, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	setting := &models.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	err := r.records.write(key, setting)
	if err != nil {
		return nil, persistence.NewRecordError("Set", "setting", key, err)
	}

	return setting, nil
}

// BehaviorConfigRepository stores ai_behavior_config rows, one per department.
type BehaviorConfigRepository struct {
	p       *Persistence
	records collection[models.BehaviorConfig]
}

func (r *BehaviorConfigRepository) Get(_ context.Context, department models.Department) (*models.BehaviorConfig, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	config, err := r.records.read(string(department))
	if err != nil {
		return nil, notFoundOr("Get", "behavior config", string(department), err, persistence.ErrBehaviorConfigNotFound)
	}

	return config, nil
}

func (r *BehaviorConfigRepository) Save(_ context.Context, config *models.BehaviorConfig) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	config.UpdatedAt = time.Now().UTC()

	err := r.records.write(string(config.Department), config)
	if err != nil {
		return persistence.NewRecordError("Save", "behavior config", string(config.Department), err)
	}

	return nil
}
