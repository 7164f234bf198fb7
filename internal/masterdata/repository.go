package masterdata

import "context"

// RepositoryPort abstracts master data lookups.
type RepositoryPort interface {
	WarehouseExists(ctx context.Context, orgID, warehouseID int64) (bool, error)
	ItemExists(ctx context.Context, orgID, itemID int64) (bool, error)
	ListWarehouses(ctx context.Context, orgID int64) ([]Warehouse, error)
	ListItems(ctx context.Context, orgID int64, limit, offset int) ([]Item, error)
}
