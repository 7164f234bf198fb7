package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// IdempotencyCleanupJob prunes idempotency keys past their retention.
type IdempotencyCleanupJob struct {
	Store  *shared.IdempotencyStore
	Logger *slog.Logger
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	if err := j.Store.Cleanup(ctx, retention); err != nil {
		j.Logger.ErrorContext(ctx, "idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.Logger.InfoContext(ctx, "idempotency keys pruned", slog.Duration("retention", retention))
	return nil
}
