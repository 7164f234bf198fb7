package receiving

import "time"

type CreateReceiptRequest struct {
	SupplierID      int64            `json:"supplier_id" validate:"gte=0"`
	WarehouseID     int64            `json:"warehouse_id" validate:"required,gt=0"`
	PurchaseOrderID int64            `json:"purchase_order_id" validate:"gte=0"`
	ReceiptDate     time.Time        `json:"receipt_date"`
	Meta            map[string]any   `json:"meta,omitempty"`
	Lines           []ReceiptLineReq `json:"lines" validate:"required,min=1,dive"`
}

type ReceiptLineReq struct {
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Qty      float64 `json:"qty" validate:"required,gt=0"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
}
