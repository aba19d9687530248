package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
)

// SyncLogStore records the history of pushes, pulls and migrations.
type SyncLogStore struct {
	db *gorm.DB
}

// NewSyncLogStore creates a new SyncLogStore.
func NewSyncLogStore(db *gorm.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

// Record inserts entry.
func (s *SyncLogStore) Record(ctx context.Context, entry *models.SyncLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("recording sync log: %w", err)
	}
	return nil
}

// List returns entries newest first, optionally restricted to one operation.
func (s *SyncLogStore) List(ctx context.Context, operation models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error) {
	page.Defaults()

	query := s.db.WithContext(ctx).Model(&models.SyncLog{})
	if operation != "" {
		query = query.Where("operation = ?", operation)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting sync logs: %w", err)
	}

	var entries []models.SyncLog
	err := query.Scopes(pagination.Paginate(page)).Order("created_at DESC").Order("id DESC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("listing sync logs: %w", err)
	}

	resp := pagination.NewPageResponse(entries, page.Page, page.PageSize, total)
	return &resp, nil
}

// Prune deletes all but the newest keep entries.
func (s *SyncLogStore) Prune(ctx context.Context, keep int) (int64, error) {
	keepIDs := s.db.Model(&models.SyncLog{}).Select("id").Order("created_at DESC").Order("id DESC").Limit(keep)
	res := s.db.WithContext(ctx).Where("id NOT IN (?)", keepIDs).Delete(&models.SyncLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning sync logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
