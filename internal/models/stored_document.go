package models

// DocumentKey is the fixed namespace under which the ledger blob is stored.
const DocumentKey = "finanzas_app_data"

// StoredDocument is the local copy of the ledger, one JSON blob per key.
type StoredDocument struct {
	KeyedRecord
	Payload   string `gorm:"type:text;not null" json:"payload"`
	SizeBytes int    `gorm:"not null;default:0" json:"size_bytes"`
}

// TableName pins the table created by the migrations.
func (StoredDocument) TableName() string { return "documents" }
