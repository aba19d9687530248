// Package storage persists the ledger locally: the document blob, the
// key-value settings beside it and the sync history.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledgersync/internal/logger"
	"ledgersync/internal/models"
)

// LocalStore keeps exactly one Document under models.DocumentKey.
type LocalStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(db *gorm.DB) *LocalStore {
	return &LocalStore{db: db, log: logger.Named("storage")}
}

// Load returns the stored Document, or nil when nothing has been saved. A
// payload that fails structural validation is an error.
func (s *LocalStore) Load(ctx context.Context) (*models.Document, error) {
	var row models.StoredDocument
	err := s.db.WithContext(ctx).Where("key = ?", models.DocumentKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	doc, err := models.ParseDocument([]byte(row.Payload))
	if err != nil {
		return nil, fmt.Errorf("stored document: %w", err)
	}
	return doc, nil
}

// Save replaces the stored Document.
func (s *LocalStore) Save(ctx context.Context, doc *models.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	row := models.StoredDocument{
		KeyedRecord: models.KeyedRecord{Key: models.DocumentKey},
		Payload:     string(payload),
		SizeBytes:   len(payload),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "size_bytes", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	s.log.Debugw("Document saved", "size_bytes", len(payload), "version", doc.Version)
	return nil
}

// ApproximateSizeBytes returns the length of the stored JSON, zero when empty.
func (s *LocalStore) ApproximateSizeBytes(ctx context.Context) (int, error) {
	var row models.StoredDocument
	err := s.db.WithContext(ctx).Select("size_bytes").Where("key = ?", models.DocumentKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading document size: %w", err)
	}
	return row.SizeBytes, nil
}

// Clear removes the stored Document.
func (s *LocalStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where("key = ?", models.DocumentKey).Delete(&models.StoredDocument{}).Error
	if err != nil {
		return fmt.Errorf("clearing document: %w", err)
	}
	s.log.Infow("Local document cleared")
	return nil
}
