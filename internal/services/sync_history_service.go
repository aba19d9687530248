package services

import (
	"context"
	"time"

	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/logger"
	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
	"ledgersync/internal/storage"
)

// DefaultHistoryLimit is how many sync log entries are kept.
const DefaultHistoryLimit = 500

// syncHistoryService handles sync log recording.
type syncHistoryService struct {
	store *storage.SyncLogStore
	keep  int
}

// NewSyncHistoryService creates a new SyncHistoryServicer. A non-positive
// keep selects DefaultHistoryLimit.
func NewSyncHistoryService(store *storage.SyncLogStore, keep int) SyncHistoryServicer {
	if keep <= 0 {
		keep = DefaultHistoryLimit
	}
	return &syncHistoryService{store: store, keep: keep}
}

// Record stores one sync outcome. Errors are logged but never propagate
// to avoid disrupting the sync itself.
func (s *syncHistoryService) Record(operation models.SyncOperation, outcome models.SyncOutcome, format string, err error, conflicts int, duration time.Duration) {
	entry := &models.SyncLog{
		Operation:  operation,
		Outcome:    outcome,
		Format:     format,
		Conflicts:  conflicts,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		entry.Message = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Record(ctx, entry); err != nil {
		logger.Get().Errorw("failed to create sync log entry",
			"error", err,
			"operation", operation,
			"outcome", outcome,
		)
		return
	}
	if _, err := s.store.Prune(ctx, s.keep); err != nil {
		logger.Get().Warnw("failed to prune sync log", "error", err)
	}
}

func (s *syncHistoryService) List(ctx context.Context, operation models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error) {
	resp, err := s.store.List(ctx, operation, page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}
