package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertMovesTx appends moves on the caller's transaction. Callers that
// mix ledger writes with their own tables (receipt posting) use this so
// everything commits or rolls back together.
func InsertMovesTx(ctx context.Context, tx pgx.Tx, moves []Move) error {
	for _, move := range moves {
		if err := move.Validate(); err != nil {
			return err
		}
		metaJSON, err := json.Marshal(move.Meta)
		if err != nil {
			return err
		}
		moveDate := move.MoveDate
		if moveDate.IsZero() {
			moveDate = time.Now().UTC()
		}
		_, err = tx.Exec(ctx, `INSERT INTO inventory_moves
		(org_id, item_id, warehouse_id, kind, direction, qty, unit_cost, total_cost, move_date, ref_table, ref_id, meta, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())`,
			move.OrgID, move.ItemID, move.WarehouseID, string(move.Kind), string(move.Direction),
			move.Qty, move.UnitCost, move.TotalCost, moveDate,
			nullStr(move.RefTable), nullID(move.RefID), metaJSON)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) InsertMoves(ctx context.Context, moves []Move) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return InsertMovesTx(ctx, tx, moves)
	})
}

const onHandSums = `COALESCE(SUM(CASE WHEN direction='in' THEN qty ELSE -qty END), 0),
	COALESCE(SUM(CASE WHEN direction='in' THEN total_cost ELSE -total_cost END), 0)`

func (r *Repository) OnHand(ctx context.Context, orgID, itemID, warehouseID int64, asOf time.Time) (OnHand, error) {
	query := fmt.Sprintf(`SELECT %s FROM inventory_moves
	WHERE org_id=$1 AND item_id=$2 AND move_date<=$3`, onHandSums)
	args := []any{orgID, itemID, asOf}
	if warehouseID != 0 {
		query += ` AND warehouse_id=$4`
		args = append(args, warehouseID)
	}

	result := OnHand{ItemID: itemID, WarehouseID: warehouseID, AsOf: asOf}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&result.Qty, &result.Value); err != nil {
		return OnHand{}, err
	}
	return result, nil
}

func (r *Repository) OnHandBatch(ctx context.Context, orgID int64, itemIDs []int64, warehouseID int64, asOf time.Time) ([]OnHand, error) {
	query := fmt.Sprintf(`SELECT item_id, %s FROM inventory_moves
	WHERE org_id=$1 AND item_id=ANY($2) AND move_date<=$3`, onHandSums)
	args := []any{orgID, itemIDs, asOf}
	if warehouseID != 0 {
		query += ` AND warehouse_id=$4`
		args = append(args, warehouseID)
	}
	query += ` GROUP BY item_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byItem := make(map[int64]OnHand, len(itemIDs))
	for rows.Next() {
		pos := OnHand{WarehouseID: warehouseID, AsOf: asOf}
		if err := rows.Scan(&pos.ItemID, &pos.Qty, &pos.Value); err != nil {
			return nil, err
		}
		byItem[pos.ItemID] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Items with no moves report an explicit zero position.
	out := make([]OnHand, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		pos, ok := byItem[itemID]
		if !ok {
			pos = OnHand{ItemID: itemID, WarehouseID: warehouseID, AsOf: asOf}
		}
		out = append(out, pos)
	}
	return out, nil
}

func (r *Repository) History(ctx context.Context, orgID int64, filter HistoryFilter) ([]Move, error) {
	query := `SELECT id, org_id, item_id, warehouse_id, kind, direction, qty, unit_cost, total_cost,
	move_date, COALESCE(ref_table, ''), COALESCE(ref_id, 0), meta, created_at
	FROM inventory_moves WHERE org_id=$1`
	args := []any{orgID}
	argNum := 2

	addFilter := func(clause string, value any) {
		query += fmt.Sprintf(" AND %s=$%d", clause, argNum)
		args = append(args, value)
		argNum++
	}
	if filter.ItemID != 0 {
		addFilter("item_id", filter.ItemID)
	}
	if filter.WarehouseID != 0 {
		addFilter("warehouse_id", filter.WarehouseID)
	}
	if filter.Kind != "" {
		addFilter("kind", string(filter.Kind))
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND move_date>=$%d", argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND move_date<=$%d", argNum)
		args = append(args, filter.To)
		argNum++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY move_date DESC, id DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		var move Move
		var metaJSON []byte
		if err := rows.Scan(&move.ID, &move.OrgID, &move.ItemID, &move.WarehouseID,
			&move.Kind, &move.Direction, &move.Qty, &move.UnitCost, &move.TotalCost,
			&move.MoveDate, &move.RefTable, &move.RefID, &metaJSON, &move.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &move.Meta); err != nil {
				return nil, err
			}
		}
		moves = append(moves, move)
	}
	return moves, rows.Err()
}

func (r *Repository) MovedItemIDs(ctx context.Context, orgID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id FROM inventory_moves WHERE org_id=$1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *Repository) OrgIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT org_id FROM inventory_moves`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
