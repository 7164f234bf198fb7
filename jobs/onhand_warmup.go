package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// OnHandWarmupJob pre-populates the on-hand cache so the first dashboard
// request of the day does not pay for the aggregation.
type OnHandWarmupJob struct {
	Ledger *ledger.Service
	Logger *slog.Logger
}

// NewOnHandWarmupJob wires dependencies for the warmup handler.
func NewOnHandWarmupJob(ledgerSvc *ledger.Service, logger *slog.Logger) *OnHandWarmupJob {
	return &OnHandWarmupJob{Ledger: ledgerSvc, Logger: logger}
}

// Handle processes TaskOnHandWarmup tasks.
func (j *OnHandWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("onhand warmup: handler not configured")
	}
	var payload OnHandWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	orgIDs := []int64{payload.OrgID}
	if payload.OrgID == 0 {
		var err error
		orgIDs, err = j.Ledger.OrgIDs(ctx)
		if err != nil {
			return err
		}
	}

	for _, orgID := range orgIDs {
		warmed, err := j.Ledger.WarmOnHand(ctx, orgID)
		if err != nil {
			j.Logger.ErrorContext(ctx, "onhand warmup failed",
				slog.Int64("org_id", orgID), slog.Any("error", err))
			return err
		}
		j.Logger.InfoContext(ctx, "onhand cache warmed",
			slog.Int64("org_id", orgID), slog.Int("items", warmed))
	}
	return nil
}
