package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledgersync/internal/models"
)

// SettingsStore is the key-value table beside the document.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value under key and whether it exists.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return row.Value, true, nil
}

// Set writes value under key.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes every pair in one transaction.
func (s *SettingsStore) SetMany(ctx context.Context, values map[string]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := models.Setting{KeyedRecord: models.KeyedRecord{Key: key}, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("writing setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error; err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

// AutoSyncConfigStore reads and writes the auto-sync record held in the
// auto_sync_enabled and spreadsheet_id settings.
type AutoSyncConfigStore struct {
	settings *SettingsStore
}

// NewAutoSyncConfigStore creates a new AutoSyncConfigStore.
func NewAutoSyncConfigStore(settings *SettingsStore) *AutoSyncConfigStore {
	return &AutoSyncConfigStore{settings: settings}
}

// LoadAutoSyncConfig returns the stored record. Missing keys read as disabled
// with no target.
func (s *AutoSyncConfigStore) LoadAutoSyncConfig(ctx context.Context) (models.AutoSyncConfig, error) {
	var cfg models.AutoSyncConfig

	enabled, ok, err := s.settings.Get(ctx, models.SettingAutoSyncEnabled)
	if err != nil {
		return cfg, err
	}
	if ok {
		cfg.Enabled, _ = strconv.ParseBool(enabled)
	}

	id, _, err := s.settings.Get(ctx, models.SettingSpreadsheetID)
	if err != nil {
		return cfg, err
	}
	cfg.SpreadsheetID = id
	return cfg, nil
}

// SaveAutoSyncConfig writes both keys together.
func (s *AutoSyncConfigStore) SaveAutoSyncConfig(ctx context.Context, cfg models.AutoSyncConfig) error {
	return s.settings.SetMany(ctx, map[string]string{
		models.SettingAutoSyncEnabled: strconv.FormatBool(cfg.Enabled),
		models.SettingSpreadsheetID:   cfg.SpreadsheetID,
	})
}
