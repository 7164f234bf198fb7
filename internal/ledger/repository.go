package ledger

import (
	"context"
	"time"
)

// HistoryFilter narrows a ledger history listing.
type HistoryFilter struct {
	ItemID      int64
	WarehouseID int64
	Kind        Kind
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// RepositoryPort abstracts ledger persistence. The ledger is append
// only: there is no update or delete; mistakes are fixed with
// correction moves.
type RepositoryPort interface {
	// InsertMoves writes all moves atomically in one transaction.
	InsertMoves(ctx context.Context, moves []Move) error
	OnHand(ctx context.Context, orgID, itemID, warehouseID int64, asOf time.Time) (OnHand, error)
	OnHandBatch(ctx context.Context, orgID int64, itemIDs []int64, warehouseID int64, asOf time.Time) ([]OnHand, error)
	History(ctx context.Context, orgID int64, filter HistoryFilter) ([]Move, error)
	// MovedItemIDs lists every item that has at least one ledger row,
	// used to warm the on-hand cache.
	MovedItemIDs(ctx context.Context, orgID int64) ([]int64, error)
	// OrgIDs lists every organisation present in the ledger.
	OrgIDs(ctx context.Context) ([]int64, error)
}
