package models

import (
	"time"

	"ledgersync/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for row-per-event tables
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// KeyedRecord contains the columns of single-row-per-key tables
type KeyedRecord struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
}
