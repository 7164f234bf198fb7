package masterdata

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WarehouseExists(ctx context.Context, orgID, warehouseID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM warehouses WHERE org_id=$1 AND id=$2 AND active)`,
		orgID, warehouseID).Scan(&exists)
	return exists, err
}

func (r *Repository) ItemExists(ctx context.Context, orgID, itemID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE org_id=$1 AND id=$2 AND active)`,
		orgID, itemID).Scan(&exists)
	return exists, err
}

func (r *Repository) ListWarehouses(ctx context.Context, orgID int64) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, code, name, active, created_at FROM warehouses WHERE org_id=$1 ORDER BY code`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.OrgID, &w.Code, &w.Name, &w.Active, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) ListItems(ctx context.Context, orgID int64, limit, offset int) ([]Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, sku, name, unit, active, created_at FROM items WHERE org_id=$1 ORDER BY sku LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrgID, &item.SKU, &item.Name, &item.Unit, &item.Active, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
