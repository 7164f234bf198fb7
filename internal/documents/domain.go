package documents

import (
	"fmt"
	"math"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DocType enumerates the business document variants.
type DocType string

const (
	DocTypeQuote         DocType = "quote"
	DocTypeAward         DocType = "award"
	DocTypePurchaseOrder DocType = "purchase_order"
	DocTypeInvoice       DocType = "invoice"
)

// Status is an open string enum; each document type uses its own subset.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusIssued    Status = "ISSUED"
)

// Document is a header record for any document type. Monetary totals are
// a snapshot taken at creation time; they are only recomputed from lines
// when the snapshot is absent or non-positive.
type Document struct {
	ID            int64          `json:"id"`
	OrgID         int64          `json:"org_id"`
	Number        string         `json:"number"`
	CustomerID    int64          `json:"customer_id,omitempty"`
	SupplierID    int64          `json:"supplier_id,omitempty"`
	SourceType    DocType        `json:"source_type,omitempty"`
	SourceID      int64          `json:"source_id,omitempty"`
	Subtotal      float64        `json:"subtotal"`
	DiscountTotal float64        `json:"discount_total"`
	TaxTotal      float64        `json:"tax_total"`
	ShippingTotal float64        `json:"shipping_total"`
	GrandTotal    float64        `json:"grand_total"`
	Currency      string         `json:"currency"`
	Status        Status         `json:"status"`
	IssueDate     time.Time      `json:"issue_date"`
	Meta          map[string]any `json:"meta,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Lines         []DocumentLine `json:"lines,omitempty"`
}

// DocumentLine belongs to exactly one document. ItemID is zero for
// free-text service lines.
type DocumentLine struct {
	ID          int64   `json:"id"`
	DocID       int64   `json:"doc_id"`
	LineNo      int     `json:"line_no"`
	ItemID      int64   `json:"item_id,omitempty"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	DiscountPct float64 `json:"discount_pct"`
	LineTotal   float64 `json:"line_total"`
}

// ErrNoConvertibleLines rejects conversion of a source without lines.
var ErrNoConvertibleLines = fmt.Errorf("%w: source document has no convertible lines", shared.ErrValidation)

// ErrUnknownConversion rejects document type pairs outside the fixed set.
var ErrUnknownConversion = fmt.Errorf("%w: unsupported conversion", shared.ErrValidation)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineTotal computes qty*price*(1-discount/100), rounded to cents.
func LineTotal(qty, unitPrice, discountPct float64) float64 {
	return round2(qty * unitPrice * (1 - discountPct/100))
}

// GrandTotal reconciles the header snapshot from its parts.
func GrandTotal(subtotal, discountTotal, taxTotal, shippingTotal float64) float64 {
	return round2(subtotal - discountTotal + taxTotal + shippingTotal)
}

// SubtotalFromLines sums line totals, recomputing any non-positive ones.
func SubtotalFromLines(lines []DocumentLine) float64 {
	var subtotal float64
	for _, line := range lines {
		total := line.LineTotal
		if total <= 0 {
			total = LineTotal(line.Qty, line.UnitPrice, line.DiscountPct)
		}
		subtotal += total
	}
	return round2(subtotal)
}
