package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryLedger struct {
	mu     sync.Mutex
	moves  []Move
	nextID int64
}

func (m *memoryLedger) InsertMoves(ctx context.Context, moves []Move) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, move := range moves {
		if err := move.Validate(); err != nil {
			return err
		}
	}
	for _, move := range moves {
		m.nextID++
		move.ID = m.nextID
		if move.MoveDate.IsZero() {
			move.MoveDate = time.Now().UTC()
		}
		m.moves = append(m.moves, move)
	}
	return nil
}

func (m *memoryLedger) OnHand(ctx context.Context, orgID, itemID, warehouseID int64, asOf time.Time) (OnHand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	position := OnHand{ItemID: itemID, WarehouseID: warehouseID, AsOf: asOf}
	for _, move := range m.moves {
		if move.OrgID != orgID || move.ItemID != itemID || move.MoveDate.After(asOf) {
			continue
		}
		if warehouseID != 0 && move.WarehouseID != warehouseID {
			continue
		}
		position.Qty += move.SignedQty()
		position.Value += move.SignedCost()
	}
	return position, nil
}

func (m *memoryLedger) OnHandBatch(ctx context.Context, orgID int64, itemIDs []int64, warehouseID int64, asOf time.Time) ([]OnHand, error) {
	out := make([]OnHand, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		pos, err := m.OnHand(ctx, orgID, itemID, warehouseID, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

func (m *memoryLedger) History(ctx context.Context, orgID int64, filter HistoryFilter) ([]Move, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Move
	for _, move := range m.moves {
		if move.OrgID != orgID {
			continue
		}
		if filter.ItemID != 0 && move.ItemID != filter.ItemID {
			continue
		}
		if filter.Kind != "" && move.Kind != filter.Kind {
			continue
		}
		out = append(out, move)
	}
	return out, nil
}

func (m *memoryLedger) MovedItemIDs(ctx context.Context, orgID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]bool{}
	for _, move := range m.moves {
		if move.OrgID == orgID {
			seen[move.ItemID] = true
		}
	}
	var ids []int64
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryLedger) OrgIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]bool{}
	for _, move := range m.moves {
		seen[move.OrgID] = true
	}
	var ids []int64
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeMasterData struct {
	warehouses map[int64]bool
	items      map[int64]bool
}

func (f fakeMasterData) RequireWarehouse(ctx context.Context, orgID, warehouseID int64) error {
	if !f.warehouses[warehouseID] {
		return shared.ErrValidation
	}
	return nil
}

func (f fakeMasterData) RequireItem(ctx context.Context, orgID, itemID int64) error {
	if !f.items[itemID] {
		return shared.ErrValidation
	}
	return nil
}

func newLedgerService(repo *memoryLedger) *Service {
	md := fakeMasterData{
		warehouses: map[int64]bool{1: true, 2: true},
		items:      map[int64]bool{10: true, 11: true},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, md, nil, nil, logger)
}

func ledgerCtx() context.Context {
	return shared.ContextWithOrg(context.Background(), 1)
}

func seedOpening(t *testing.T, repo *memoryLedger, itemID, warehouseID int64, qty, cost float64) {
	t.Helper()
	require.NoError(t, repo.InsertMoves(context.Background(), []Move{{
		OrgID: 1, ItemID: itemID, WarehouseID: warehouseID,
		Kind: KindOpening, Direction: DirectionIn,
		Qty: qty, TotalCost: cost,
		MoveDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}))
}

func TestOnHandAggregatesSignedMoves(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)
	// in 10 @5, out 3 @5, in 2 @6 -> 9 on hand worth 47.
	seedOpening(t, repo, 10, 1, 10, 50)
	require.NoError(t, repo.InsertMoves(context.Background(), []Move{
		{
			OrgID: 1, ItemID: 10, WarehouseID: 1,
			Kind: KindSale, Direction: DirectionOut,
			Qty: 3, UnitCost: 5, TotalCost: 15,
			MoveDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			OrgID: 1, ItemID: 10, WarehouseID: 1,
			Kind: KindGRN, Direction: DirectionIn,
			Qty: 2, UnitCost: 6, TotalCost: 12,
			MoveDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}))

	position, err := svc.OnHand(ledgerCtx(), 10, 1, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.InDelta(t, 9, position.Qty, 0.001)
	require.InDelta(t, 47, position.Value, 0.001)

	fresh, err := svc.OnHandFresh(ledgerCtx(), 10, 1, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.InDelta(t, position.Qty, fresh.Qty, 0.001)
	require.InDelta(t, position.Value, fresh.Value, 0.001)
}

func TestOnHandIsPointInTime(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)
	seedOpening(t, repo, 10, 1, 12, 60)
	require.NoError(t, repo.InsertMoves(context.Background(), []Move{{
		OrgID: 1, ItemID: 10, WarehouseID: 1,
		Kind: KindSale, Direction: DirectionOut, Qty: 3,
		MoveDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}}))

	before, err := svc.OnHand(ledgerCtx(), 10, 1, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.InDelta(t, 12, before.Qty, 0.001)
}

func TestTransferWritesPairedMoves(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)
	seedOpening(t, repo, 10, 1, 20, 100)

	result, err := svc.Transfer(ledgerCtx(), TransferInput{
		FromWarehouseID: 1,
		ToWarehouseID:   2,
		Lines: []TransferLine{
			{ItemID: 10, Qty: 5, UnitCost: 5},
			{ItemID: 11, Qty: 0},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.MoveCount)
	require.NotEmpty(t, result.TransferRef)

	moves, err := svc.History(ledgerCtx(), HistoryFilter{Kind: KindTransfer})
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, DirectionOut, moves[0].Direction)
	require.EqualValues(t, 1, moves[0].WarehouseID)
	require.Equal(t, DirectionIn, moves[1].Direction)
	require.EqualValues(t, 2, moves[1].WarehouseID)
	require.Equal(t, moves[0].Meta["transfer_ref"], moves[1].Meta["transfer_ref"])

	from, err := svc.OnHand(ledgerCtx(), 10, 1, time.Now().UTC())
	require.NoError(t, err)
	require.InDelta(t, 15, from.Qty, 0.001)
	to, err := svc.OnHand(ledgerCtx(), 10, 2, time.Now().UTC())
	require.NoError(t, err)
	require.InDelta(t, 5, to.Qty, 0.001)

	// A transfer never changes the total position across warehouses.
	total, err := svc.OnHand(ledgerCtx(), 10, 0, time.Now().UTC())
	require.NoError(t, err)
	require.InDelta(t, 20, total.Qty, 0.001)
	require.InDelta(t, 100, total.Value, 0.001)
}

func TestTransferRejectsSameWarehouse(t *testing.T) {
	svc := newLedgerService(&memoryLedger{})

	_, err := svc.Transfer(ledgerCtx(), TransferInput{
		FromWarehouseID: 1, ToWarehouseID: 1,
		Lines: []TransferLine{{ItemID: 10, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransferRejectsUnknownWarehouse(t *testing.T) {
	svc := newLedgerService(&memoryLedger{})

	_, err := svc.Transfer(ledgerCtx(), TransferInput{
		FromWarehouseID: 1, ToWarehouseID: 99,
		Lines: []TransferLine{{ItemID: 10, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransferAllZeroLinesIsNoOp(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)

	result, err := svc.Transfer(ledgerCtx(), TransferInput{
		FromWarehouseID: 1, ToWarehouseID: 2,
		Lines: []TransferLine{{ItemID: 10, Qty: 0}, {ItemID: 11, Qty: 0}},
	})
	require.NoError(t, err)
	require.Zero(t, result.MoveCount)
	require.Empty(t, repo.moves)
}

func TestAdjustAllZeroDeltasIsNoOp(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)

	result, err := svc.Adjust(ledgerCtx(), AdjustInput{
		WarehouseID: 1, Reason: "cycle count",
		Lines: []AdjustLine{{ItemID: 10, Delta: 0}},
	})
	require.NoError(t, err)
	require.Zero(t, result.MoveCount)
	require.Empty(t, repo.moves)
}

func TestAdjustMapsSignsToDirections(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)
	seedOpening(t, repo, 10, 1, 10, 50)

	result, err := svc.Adjust(ledgerCtx(), AdjustInput{
		WarehouseID: 1,
		Reason:      "cycle count",
		Lines: []AdjustLine{
			{ItemID: 10, Delta: -2},
			{ItemID: 11, Delta: 4},
			{ItemID: 10, Delta: 0},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.MoveCount)

	moves, err := svc.History(ledgerCtx(), HistoryFilter{Kind: KindAdjustment})
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, DirectionOut, moves[0].Direction)
	require.InDelta(t, 2, moves[0].Qty, 0.001)
	require.Zero(t, moves[0].TotalCost)
	require.Equal(t, DirectionIn, moves[1].Direction)
	require.Equal(t, "cycle count", moves[1].Meta["reason"])

	// Adjustments carry no cost, so value is untouched.
	position, err := svc.OnHand(ledgerCtx(), 10, 1, time.Now().UTC())
	require.NoError(t, err)
	require.InDelta(t, 8, position.Qty, 0.001)
	require.InDelta(t, 50, position.Value, 0.001)
}

func TestAdjustRequiresReason(t *testing.T) {
	svc := newLedgerService(&memoryLedger{})

	_, err := svc.Adjust(ledgerCtx(), AdjustInput{
		WarehouseID: 1,
		Lines:       []AdjustLine{{ItemID: 10, Delta: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLedgerOnlyGrows(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)
	seedOpening(t, repo, 10, 1, 10, 50)

	_, err := svc.Adjust(ledgerCtx(), AdjustInput{
		WarehouseID: 1, Reason: "shrinkage",
		Lines: []AdjustLine{{ItemID: 10, Delta: -1}},
	})
	require.NoError(t, err)
	_, err = svc.Transfer(ledgerCtx(), TransferInput{
		FromWarehouseID: 1, ToWarehouseID: 2,
		Lines: []TransferLine{{ItemID: 10, Qty: 2}},
	})
	require.NoError(t, err)

	require.Len(t, repo.moves, 4)
	for i := 1; i < len(repo.moves); i++ {
		require.Greater(t, repo.moves[i].ID, repo.moves[i-1].ID)
	}
}

func TestOnHandBatchIncludesZeroPositions(t *testing.T) {
	repo := &memoryLedger{}
	svc := newLedgerService(repo)
	seedOpening(t, repo, 10, 1, 9, 47)

	positions, err := svc.OnHandBatch(ledgerCtx(), []int64{10, 11}, 0, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.InDelta(t, 9, positions[0].Qty, 0.001)
	require.InDelta(t, 47, positions[0].Value, 0.001)
	require.Zero(t, positions[1].Qty)
}

func TestMoveValidation(t *testing.T) {
	repo := &memoryLedger{}
	err := repo.InsertMoves(context.Background(), []Move{{
		OrgID: 1, ItemID: 10, WarehouseID: 1,
		Kind: KindGRN, Direction: DirectionIn, Qty: -1,
	}})
	require.ErrorIs(t, err, shared.ErrValidation)

	err = repo.InsertMoves(context.Background(), []Move{{
		OrgID: 1, ItemID: 10, WarehouseID: 1,
		Kind: "bogus", Direction: DirectionIn, Qty: 1,
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
}
