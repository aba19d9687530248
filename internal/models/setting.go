package models

// Setting keys.
const (
	SettingAutoSyncEnabled = "auto_sync_enabled"
	SettingSpreadsheetID   = "spreadsheet_id"
	SettingGoogleAuth      = "google_auth"
)

// Setting is one entry of the local key-value store that sits beside the
// document blob.
type Setting struct {
	KeyedRecord
	Value string `gorm:"type:text;not null" json:"value"`
}

// TableName pins the table created by the migrations.
func (Setting) TableName() string { return "settings" }

// MinSpreadsheetIDLength is the shortest spreadsheet id accepted as a sync
// target.
const MinSpreadsheetIDLength = 10

// AutoSyncConfig is the persisted auto-sync configuration record.
type AutoSyncConfig struct {
	Enabled       bool   `json:"enabled"`
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`
}

// HasTarget reports whether the spreadsheet id is plausible enough to push to.
func (c AutoSyncConfig) HasTarget() bool {
	return len(c.SpreadsheetID) >= MinSpreadsheetIDLength
}
