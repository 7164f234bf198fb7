package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MasterData validates references against master records.
type MasterData interface {
	RequireWarehouse(ctx context.Context, orgID, warehouseID int64) error
	RequireItem(ctx context.Context, orgID, itemID int64) error
}

// TransferInput moves stock between two warehouses.
type TransferInput struct {
	FromWarehouseID int64
	ToWarehouseID   int64
	MoveDate        time.Time
	Reason          string
	Lines           []TransferLine
}

// TransferLine is one item within a transfer.
type TransferLine struct {
	ItemID   int64
	Qty      float64
	UnitCost float64
}

// TransferResult reports the recorded transfer.
type TransferResult struct {
	TransferRef string `json:"transfer_ref"`
	MoveCount   int    `json:"move_count"`
}

// AdjustInput records manual stock corrections. Deltas are signed;
// adjustments carry no cost.
type AdjustInput struct {
	WarehouseID int64
	MoveDate    time.Time
	Reason      string
	Lines       []AdjustLine
}

// AdjustLine is one item delta within an adjustment.
type AdjustLine struct {
	ItemID int64
	Delta  float64
}

// AdjustResult reports the recorded adjustment.
type AdjustResult struct {
	MoveCount int `json:"move_count"`
}

// Service implements ledger producers and on-hand queries.
type Service struct {
	repo   RepositoryPort
	md     MasterData
	cache  *Cache
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo RepositoryPort, md MasterData, cache *Cache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, md: md, cache: cache, audit: audit, logger: logger}
}

// Transfer records a warehouse transfer as paired out/in moves written
// atomically. Both legs share a transfer_ref so they can be correlated
// later. Zero-quantity lines are skipped.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return TransferResult{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return TransferResult{}, fmt.Errorf("%w: transfer requires two distinct warehouses", shared.ErrValidation)
	}
	if err := s.md.RequireWarehouse(ctx, orgID, input.FromWarehouseID); err != nil {
		return TransferResult{}, err
	}
	if err := s.md.RequireWarehouse(ctx, orgID, input.ToWarehouseID); err != nil {
		return TransferResult{}, err
	}

	moveDate := input.MoveDate
	if moveDate.IsZero() {
		moveDate = time.Now().UTC()
	}
	transferRef := uuid.NewString()
	meta := map[string]any{"transfer_ref": transferRef}
	if input.Reason != "" {
		meta["reason"] = input.Reason
	}

	var moves []Move
	for _, line := range input.Lines {
		if line.Qty == 0 {
			continue
		}
		if line.Qty < 0 {
			return TransferResult{}, fmt.Errorf("%w: transfer qty must not be negative", shared.ErrValidation)
		}
		if err := s.md.RequireItem(ctx, orgID, line.ItemID); err != nil {
			return TransferResult{}, err
		}
		totalCost := line.Qty * line.UnitCost
		out := Move{
			OrgID: orgID, ItemID: line.ItemID, WarehouseID: input.FromWarehouseID,
			Kind: KindTransfer, Direction: DirectionOut,
			Qty: line.Qty, UnitCost: line.UnitCost, TotalCost: totalCost,
			MoveDate: moveDate, Meta: meta,
		}
		in := out
		in.WarehouseID = input.ToWarehouseID
		in.Direction = DirectionIn
		moves = append(moves, out, in)
	}
	if len(moves) == 0 {
		// Every line was zero quantity. Skipped lines are not errors,
		// so the transfer succeeds without touching the ledger.
		return TransferResult{TransferRef: transferRef, MoveCount: 0}, nil
	}

	if err := s.repo.InsertMoves(ctx, moves); err != nil {
		return TransferResult{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, orgID, "ledger.transfer", transferRef, map[string]any{
		"from_warehouse_id": input.FromWarehouseID,
		"to_warehouse_id":   input.ToWarehouseID,
		"move_count":        len(moves),
	})
	return TransferResult{TransferRef: transferRef, MoveCount: len(moves)}, nil
}

// Adjust records manual stock corrections. Each non-zero delta becomes
// one uncosted adjustment move with the sign mapped to a direction.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (AdjustResult, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return AdjustResult{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if input.Reason == "" {
		return AdjustResult{}, fmt.Errorf("%w: adjustment requires a reason", shared.ErrValidation)
	}
	if err := s.md.RequireWarehouse(ctx, orgID, input.WarehouseID); err != nil {
		return AdjustResult{}, err
	}

	moveDate := input.MoveDate
	if moveDate.IsZero() {
		moveDate = time.Now().UTC()
	}
	meta := map[string]any{"reason": input.Reason}

	var moves []Move
	for _, line := range input.Lines {
		if line.Delta == 0 {
			continue
		}
		if err := s.md.RequireItem(ctx, orgID, line.ItemID); err != nil {
			return AdjustResult{}, err
		}
		direction := DirectionIn
		if line.Delta < 0 {
			direction = DirectionOut
		}
		moves = append(moves, Move{
			OrgID: orgID, ItemID: line.ItemID, WarehouseID: input.WarehouseID,
			Kind: KindAdjustment, Direction: direction,
			Qty:      math.Abs(line.Delta),
			MoveDate: moveDate, Meta: meta,
		})
	}
	if len(moves) == 0 {
		// All deltas were zero: nothing to record, still a success.
		return AdjustResult{MoveCount: 0}, nil
	}

	if err := s.repo.InsertMoves(ctx, moves); err != nil {
		return AdjustResult{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, orgID, "ledger.adjust", fmt.Sprintf("warehouse:%d", input.WarehouseID), map[string]any{
		"reason":     input.Reason,
		"move_count": len(moves),
	})
	return AdjustResult{MoveCount: len(moves)}, nil
}

// OnHand returns the stock position of one item at a point in time.
// warehouseID zero aggregates across all warehouses.
func (s *Service) OnHand(ctx context.Context, itemID, warehouseID int64, asOf time.Time) (OnHand, error) {
	return s.onHand(ctx, itemID, warehouseID, asOf, false)
}

// OnHandFresh bypasses the cache and always aggregates from storage.
func (s *Service) OnHandFresh(ctx context.Context, itemID, warehouseID int64, asOf time.Time) (OnHand, error) {
	return s.onHand(ctx, itemID, warehouseID, asOf, true)
}

func (s *Service) onHand(ctx context.Context, itemID, warehouseID int64, asOf time.Time, fresh bool) (OnHand, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return OnHand{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if itemID == 0 {
		return OnHand{}, fmt.Errorf("%w: item required", shared.ErrValidation)
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	if fresh {
		return s.repo.OnHand(ctx, orgID, itemID, warehouseID, asOf)
	}

	key, err := s.cache.BuildKey(ctx, onHandKey(orgID, itemID, warehouseID, asOf)...)
	if err != nil {
		return OnHand{}, err
	}
	var position OnHand
	err = s.cache.FetchJSON(ctx, key, &position, func(ctx context.Context) (any, error) {
		return s.repo.OnHand(ctx, orgID, itemID, warehouseID, asOf)
	})
	if err != nil {
		return OnHand{}, err
	}
	return position, nil
}

// OnHandBatch returns positions for many items in one round trip. Items
// without moves come back as explicit zero positions.
func (s *Service) OnHandBatch(ctx context.Context, itemIDs []int64, warehouseID int64, asOf time.Time) ([]OnHand, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return nil, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return s.repo.OnHandBatch(ctx, orgID, itemIDs, warehouseID, asOf)
}

// History lists ledger rows, newest first.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]Move, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return nil, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	return s.repo.History(ctx, orgID, filter)
}

// WarmOnHand precomputes cached positions for every moved item of the
// organisation. Used by the background warmup job.
func (s *Service) WarmOnHand(ctx context.Context, orgID int64) (int, error) {
	itemIDs, err := s.repo.MovedItemIDs(ctx, orgID)
	if err != nil {
		return 0, err
	}
	asOf := time.Now().UTC()
	orgCtx := shared.ContextWithOrg(ctx, orgID)

	g, gctx := errgroup.WithContext(orgCtx)
	g.SetLimit(8)
	for _, itemID := range itemIDs {
		itemID := itemID
		g.Go(func() error {
			_, err := s.OnHand(gctx, itemID, 0, asOf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(itemIDs), nil
}

// OrgIDs exposes the set of organisations with ledger activity.
func (s *Service) OrgIDs(ctx context.Context) ([]int64, error) {
	return s.repo.OrgIDs(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "on-hand cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, orgID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		Action:   action,
		Entity:   "inventory_moves",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
