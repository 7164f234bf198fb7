// Package masterdata holds reference records other modules validate
// against: warehouses and items.
package masterdata

import "time"

// Warehouse is a physical or logical stock location.
type Warehouse struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a stockable product. Unit is the base unit of measure.
type Item struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
