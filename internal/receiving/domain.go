// Package receiving manages goods receipts and their posting into the
// inventory ledger.
package receiving

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ReceiptStatus is the lifecycle of a goods receipt.
type ReceiptStatus string

const (
	ReceiptStatusDraft  ReceiptStatus = "DRAFT"
	ReceiptStatusPosted ReceiptStatus = "POSTED"
)

// Receipt is a goods receipt header. Posting is a one-way gate: once
// POSTED the receipt and its ledger moves are immutable.
type Receipt struct {
	ID              int64          `json:"id"`
	OrgID           int64          `json:"org_id"`
	Number          string         `json:"number"`
	SupplierID      int64          `json:"supplier_id,omitempty"`
	WarehouseID     int64          `json:"warehouse_id"`
	PurchaseOrderID int64          `json:"purchase_order_id,omitempty"`
	Status          ReceiptStatus  `json:"status"`
	ReceiptDate     time.Time      `json:"receipt_date"`
	PostedAt        *time.Time     `json:"posted_at,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Lines           []ReceiptLine  `json:"lines,omitempty"`
}

// ReceiptLine is one received item.
type ReceiptLine struct {
	ID        int64   `json:"id"`
	ReceiptID int64   `json:"receipt_id"`
	LineNo    int     `json:"line_no"`
	ItemID    int64   `json:"item_id"`
	Qty       float64 `json:"qty"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`
}

// ErrAlreadyPosted rejects posting a receipt twice. Re-posting fails
// loudly instead of silently succeeding so callers notice the double
// submission.
var ErrAlreadyPosted = fmt.Errorf("%w: receipt already posted", shared.ErrConflict)
