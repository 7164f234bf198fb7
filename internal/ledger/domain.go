// Package ledger maintains the append-only inventory movement ledger.
// Stock on hand is never stored; it is always derived by aggregating
// moves up to a point in time.
package ledger

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Kind classifies why stock moved.
type Kind string

const (
	KindOpening    Kind = "opening"
	KindGRN        Kind = "grn"
	KindSale       Kind = "sale"
	KindAdjustment Kind = "adjustment"
	KindTransfer   Kind = "transfer"
	KindCorrection Kind = "correction"
)

// Direction is the sign of a movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Move is one immutable ledger row. Qty is always positive; Direction
// carries the sign. TotalCost is the recorded cost of the movement and
// is summed verbatim for valuation.
type Move struct {
	ID          int64          `json:"id"`
	OrgID       int64          `json:"org_id"`
	ItemID      int64          `json:"item_id"`
	WarehouseID int64          `json:"warehouse_id"`
	Kind        Kind           `json:"kind"`
	Direction   Direction      `json:"direction"`
	Qty         float64        `json:"qty"`
	UnitCost    float64        `json:"unit_cost"`
	TotalCost   float64        `json:"total_cost"`
	MoveDate    time.Time      `json:"move_date"`
	RefTable    string         `json:"ref_table,omitempty"`
	RefID       int64          `json:"ref_id,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks the invariants every ledger row must hold.
func (m Move) Validate() error {
	if m.OrgID == 0 || m.ItemID == 0 || m.WarehouseID == 0 {
		return fmt.Errorf("%w: move requires org, item and warehouse", shared.ErrValidation)
	}
	if m.Qty <= 0 {
		return fmt.Errorf("%w: move qty must be positive", shared.ErrValidation)
	}
	if m.Direction != DirectionIn && m.Direction != DirectionOut {
		return fmt.Errorf("%w: invalid move direction %q", shared.ErrValidation, m.Direction)
	}
	switch m.Kind {
	case KindOpening, KindGRN, KindSale, KindAdjustment, KindTransfer, KindCorrection:
	default:
		return fmt.Errorf("%w: invalid move kind %q", shared.ErrValidation, m.Kind)
	}
	return nil
}

// SignedQty returns the quantity with the direction applied.
func (m Move) SignedQty() float64 {
	if m.Direction == DirectionOut {
		return -m.Qty
	}
	return m.Qty
}

// SignedCost returns the recorded cost with the direction applied.
func (m Move) SignedCost() float64 {
	if m.Direction == DirectionOut {
		return -m.TotalCost
	}
	return m.TotalCost
}

// OnHand is a point-in-time stock position for one item, optionally
// scoped to a warehouse.
type OnHand struct {
	ItemID      int64     `json:"item_id"`
	WarehouseID int64     `json:"warehouse_id,omitempty"`
	Qty         float64   `json:"qty"`
	Value       float64   `json:"value"`
	AsOf        time.Time `json:"as_of"`
}
