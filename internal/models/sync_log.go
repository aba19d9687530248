package models

// SyncOperation identifies what a sync log entry records.
type SyncOperation string

const (
	SyncOperationPush    SyncOperation = "push"
	SyncOperationPull    SyncOperation = "pull"
	SyncOperationMigrate SyncOperation = "migrate"
)

// SyncOutcome is the result of a sync operation.
type SyncOutcome string

const (
	SyncOutcomeSuccess    SyncOutcome = "success"
	SyncOutcomeFailed     SyncOutcome = "failed"
	SyncOutcomeAuthFailed SyncOutcome = "auth_failed"
	SyncOutcomeSkipped    SyncOutcome = "skipped"
)

// SyncLog records one push, pull or migration against the remote store.
type SyncLog struct {
	Base
	Operation  SyncOperation `gorm:"not null;index;size:16" json:"operation"`
	Outcome    SyncOutcome   `gorm:"not null;size:16" json:"outcome"`
	Format     string        `gorm:"size:16" json:"format,omitempty"`
	Message    string        `gorm:"type:text" json:"message,omitempty"`
	Conflicts  int           `gorm:"not null;default:0" json:"conflicts"`
	DurationMS int64         `gorm:"not null;default:0" json:"duration_ms"`
}
