// Package jobs defines background tasks processed by the Asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskOnHandWarmup precomputes cached on-hand positions.
	TaskOnHandWarmup = "ledger:onhand_warmup"
)

// IdempotencyCleanupPayload controls retention for the cleanup task.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// OnHandWarmupPayload scopes the warmup. OrgID zero warms every
// organisation with ledger activity.
type OnHandWarmupPayload struct {
	OrgID int64 `json:"org_id"`
}

// NewOnHandWarmupTask constructs the warmup task.
func NewOnHandWarmupTask(orgID int64) (*asynq.Task, error) {
	data, err := json.Marshal(OnHandWarmupPayload{OrgID: orgID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOnHandWarmup, data), nil
}
