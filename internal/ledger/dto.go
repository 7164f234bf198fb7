package ledger

import "time"

type TransferRequest struct {
	FromWarehouseID int64                 `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64                 `json:"to_warehouse_id" validate:"required,gt=0"`
	MoveDate        time.Time             `json:"move_date"`
	Reason          string                `json:"reason" validate:"omitempty,max=500"`
	Lines           []TransferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type TransferLineRequest struct {
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Qty      float64 `json:"qty" validate:"gte=0"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
}

type AdjustRequest struct {
	WarehouseID int64               `json:"warehouse_id" validate:"required,gt=0"`
	MoveDate    time.Time           `json:"move_date"`
	Reason      string              `json:"reason" validate:"required,max=500"`
	Lines       []AdjustLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type AdjustLineRequest struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Delta  float64 `json:"delta"`
}

type OnHandBatchRequest struct {
	ItemIDs     []int64   `json:"item_ids" validate:"required,min=1,max=500,dive,gt=0"`
	WarehouseID int64     `json:"warehouse_id" validate:"gte=0"`
	AsOf        time.Time `json:"as_of"`
}
