package receiving

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/docnum"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const receiptColumns = `id, org_id, number, COALESCE(supplier_id, 0), warehouse_id,
	COALESCE(purchase_order_id, 0), status, receipt_date, posted_at, meta, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, receipt Receipt, lines []ReceiptLine) (Receipt, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		number, err := docnum.CounterGenerator{}.Next(ctx, tx, docnum.Request{
			OrgID:     receipt.OrgID,
			DocType:   "goods_receipt",
			Prefix:    "GRN",
			Width:     4,
			ScopeDate: receipt.ReceiptDate,
		})
		if err != nil {
			return err
		}
		receipt.Number = number

		metaJSON, err := json.Marshal(receipt.Meta)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `INSERT INTO goods_receipts
		(org_id, number, supplier_id, warehouse_id, purchase_order_id, status, receipt_date, meta, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
		RETURNING id`,
			receipt.OrgID, receipt.Number, nullID(receipt.SupplierID), receipt.WarehouseID,
			nullID(receipt.PurchaseOrderID), string(receipt.Status), receipt.ReceiptDate, metaJSON).
			Scan(&receipt.ID)
		if err != nil {
			return err
		}

		for i := range lines {
			lines[i].ReceiptID = receipt.ID
			err := tx.QueryRow(ctx, `INSERT INTO goods_receipt_lines
			(org_id, receipt_id, line_no, item_id, qty, unit_cost, total_cost)
			VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
				receipt.OrgID, receipt.ID, lines[i].LineNo, lines[i].ItemID,
				lines[i].Qty, lines[i].UnitCost, lines[i].TotalCost).Scan(&lines[i].ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	receipt.Lines = lines
	return receipt, nil
}

func (r *Repository) Get(ctx context.Context, orgID, id int64) (Receipt, error) {
	query := fmt.Sprintf(`SELECT %s FROM goods_receipts WHERE org_id=$1 AND id=$2`, receiptColumns)
	receipt, err := scanReceipt(r.pool.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, fmt.Errorf("%w: receipt %d", shared.ErrNotFound, id)
		}
		return Receipt{}, err
	}
	receipt.Lines, err = r.lines(ctx, r.pool, orgID, id)
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

func (r *Repository) List(ctx context.Context, orgID int64, filter ListFilter) ([]Receipt, error) {
	query := fmt.Sprintf(`SELECT %s FROM goods_receipts WHERE org_id=$1`, receiptColumns)
	args := []any{orgID}
	argNum := 2
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status=$%d`, argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` ORDER BY receipt_date DESC, id DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func (r *Repository) Post(ctx context.Context, orgID, id int64, postedAt time.Time, buildMoves func(Receipt) ([]ledger.Move, error)) (Receipt, error) {
	var receipt Receipt
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM goods_receipts WHERE org_id=$1 AND id=$2 FOR UPDATE`, receiptColumns)
		var err error
		receipt, err = scanReceipt(tx.QueryRow(ctx, query, orgID, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: receipt %d", shared.ErrNotFound, id)
			}
			return err
		}
		if receipt.Status == ReceiptStatusPosted {
			return ErrAlreadyPosted
		}

		receipt.Lines, err = r.lines(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		moves, err := buildMoves(receipt)
		if err != nil {
			return err
		}
		if err := ledger.InsertMovesTx(ctx, tx, moves); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE goods_receipts SET status=$1, posted_at=$2, updated_at=NOW() WHERE org_id=$3 AND id=$4`,
			string(ReceiptStatusPosted), postedAt, orgID, id)
		if err != nil {
			return err
		}
		receipt.Status = ReceiptStatusPosted
		receipt.PostedAt = &postedAt
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) lines(ctx context.Context, q rowQuerier, orgID, receiptID int64) ([]ReceiptLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, receipt_id, line_no, item_id, qty, unit_cost, total_cost
		FROM goods_receipt_lines WHERE org_id=$1 AND receipt_id=$2 ORDER BY line_no`,
		orgID, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ReceiptLine
	for rows.Next() {
		var line ReceiptLine
		if err := rows.Scan(&line.ID, &line.ReceiptID, &line.LineNo, &line.ItemID,
			&line.Qty, &line.UnitCost, &line.TotalCost); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var receipt Receipt
	var metaJSON []byte
	err := row.Scan(&receipt.ID, &receipt.OrgID, &receipt.Number, &receipt.SupplierID,
		&receipt.WarehouseID, &receipt.PurchaseOrderID, &receipt.Status, &receipt.ReceiptDate,
		&receipt.PostedAt, &metaJSON, &receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		return Receipt{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &receipt.Meta); err != nil {
			return Receipt{}, err
		}
	}
	return receipt, nil
}

func nullID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
