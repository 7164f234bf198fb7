package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Capability names a storage surface the application may depend on.
type Capability string

const (
	CapabilityQuotes         Capability = "quotes"
	CapabilityAwards         Capability = "awards"
	CapabilityPurchaseOrders Capability = "purchase_orders"
	CapabilityInvoices       Capability = "invoices"
	CapabilityInventory      Capability = "inventory_moves"
	CapabilityReceipts       Capability = "goods_receipts"
	CapabilityDocCounters    Capability = "doc_counters"
)

var capabilityTables = map[Capability]string{
	CapabilityQuotes:         "quotes",
	CapabilityAwards:         "awards",
	CapabilityPurchaseOrders: "purchase_orders",
	CapabilityInvoices:       "invoices",
	CapabilityInventory:      "inventory_moves",
	CapabilityReceipts:       "goods_receipts",
	CapabilityDocCounters:    "doc_counters",
}

// Capabilities records which storage surfaces were present at startup.
// Incremental tenant rollout is handled by probing once here, not by
// introspecting the schema on every request.
type Capabilities struct {
	present map[Capability]bool
}

// ProbeCapabilities checks each known table with to_regclass.
func ProbeCapabilities(ctx context.Context, pool *pgxpool.Pool) (*Capabilities, error) {
	caps := &Capabilities{present: make(map[Capability]bool, len(capabilityTables))}
	for capability, table := range capabilityTables {
		var regclass *string
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&regclass); err != nil {
			return nil, fmt.Errorf("platform/db: probe %s: %w", table, err)
		}
		caps.present[capability] = regclass != nil
	}
	return caps, nil
}

// AllCapabilities returns a set with every capability enabled, for tests
// and for deployments that manage schema out of band.
func AllCapabilities() *Capabilities {
	caps := &Capabilities{present: make(map[Capability]bool, len(capabilityTables))}
	for capability := range capabilityTables {
		caps.present[capability] = true
	}
	return caps
}

// CapabilitiesFor returns a set with only the given capabilities
// enabled. Used to model partially provisioned tenants in tests.
func CapabilitiesFor(enabled ...Capability) *Capabilities {
	caps := &Capabilities{present: make(map[Capability]bool, len(enabled))}
	for _, capability := range enabled {
		caps.present[capability] = true
	}
	return caps
}

// Has reports whether the capability's table existed at startup.
func (c *Capabilities) Has(capability Capability) bool {
	if c == nil {
		return true
	}
	return c.present[capability]
}
