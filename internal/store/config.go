package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"office-queue-backend/internal/model"
)

// GetConfigValue reads a persisted runtime override. The boolean reports
// whether the key was present.
func (s *gormStore) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	var entry model.ConfigEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read config %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// SetConfigValue upserts a runtime override.
func (s *gormStore) SetConfigValue(ctx context.Context, key, value, description string) error {
	entry := model.ConfigEntry{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(&entry).Error
}

// AllConfigValues returns every persisted override.
func (s *gormStore) AllConfigValues(ctx context.Context) (map[string]string, error) {
	var entries []model.ConfigEntry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list config: %w", err)
	}
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	return values, nil
}

// ResetConfig drops all persisted overrides, reverting every tunable to
// its compiled default.
func (s *gormStore) ResetConfig(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&model.ConfigEntry{}).Error
}
