package documents

import "time"

type CreateDocumentRequest struct {
	CustomerID    int64           `json:"customer_id" validate:"gte=0"`
	SupplierID    int64           `json:"supplier_id" validate:"gte=0"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	IssueDate     time.Time       `json:"issue_date"`
	DiscountTotal float64         `json:"discount_total" validate:"gte=0"`
	TaxTotal      float64         `json:"tax_total" validate:"gte=0"`
	ShippingTotal float64         `json:"shipping_total" validate:"gte=0"`
	Meta          map[string]any  `json:"meta,omitempty"`
	Lines         []CreateLineReq `json:"lines" validate:"required,min=1,dive"`
}

type CreateLineReq struct {
	ItemID      int64   `json:"item_id" validate:"gte=0"`
	Description string  `json:"description" validate:"required,max=500"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	Unit        string  `json:"unit" validate:"omitempty,max=20"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	DiscountPct float64 `json:"discount_pct" validate:"gte=0,lte=100"`
}

type ListResponse struct {
	Items []Document `json:"items"`
	Total int        `json:"total"`
}
