package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/docnum"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrDuplicateDerivation surfaces the provenance unique index as a typed
// error so the service can resolve the race to the existing target.
var ErrDuplicateDerivation = fmt.Errorf("%w: target already derived from source", shared.ErrConflict)

type tableSpec struct {
	table   string
	lines   string
	docType string
}

// One table per document type; the Go mapping is uniform.
var tables = map[DocType]tableSpec{
	DocTypeQuote:         {table: "quotes", lines: "quote_lines", docType: "quote"},
	DocTypeAward:         {table: "awards", lines: "award_lines", docType: "award"},
	DocTypePurchaseOrder: {table: "purchase_orders", lines: "purchase_order_lines", docType: "purchase_order"},
	DocTypeInvoice:       {table: "invoices", lines: "invoice_lines", docType: "invoice"},
}

func specFor(docType DocType) (tableSpec, error) {
	spec, ok := tables[docType]
	if !ok {
		return tableSpec{}, fmt.Errorf("%w: unknown document type %q", shared.ErrValidation, docType)
	}
	return spec, nil
}

const headerColumns = `id, org_id, number, COALESCE(customer_id, 0), COALESCE(supplier_id, 0),
	COALESCE(source_type, ''), COALESCE(source_id, 0),
	subtotal, discount_total, tax_total, shipping_total, grand_total,
	currency, status, issue_date, meta, created_at, updated_at`

// Repository persists documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
// Any error rolls back every write made by the callback.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("documents repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get fetches a document header with its lines.
func (r *Repository) Get(ctx context.Context, docType DocType, orgID, id int64) (Document, error) {
	doc, err := getDocument(ctx, r.pool, docType, orgID, id)
	if err != nil {
		return Document{}, err
	}
	lines, err := getLines(ctx, r.pool, docType, orgID, id)
	if err != nil {
		return Document{}, err
	}
	doc.Lines = lines
	return doc, nil
}

// List returns documents of one type for the organisation.
func (r *Repository) List(ctx context.Context, docType DocType, orgID int64, filter ListFilter) ([]Document, int, error) {
	spec, err := specFor(docType)
	if err != nil {
		return nil, 0, err
	}

	where := `WHERE org_id=$1`
	args := []any{orgID}
	argNum := 2
	if filter.Status != "" {
		where += fmt.Sprintf(` AND status=$%d`, argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND number ILIKE $%d`, argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	var total int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, spec.table, where)
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	dataSQL := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		headerColumns, spec.table, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *txRepository) GetDocument(ctx context.Context, docType DocType, orgID, id int64) (Document, error) {
	return getDocument(ctx, r.tx, docType, orgID, id)
}

func (r *txRepository) GetLines(ctx context.Context, docType DocType, orgID, docID int64) ([]DocumentLine, error) {
	return getLines(ctx, r.tx, docType, orgID, docID)
}

func (r *txRepository) FindByProvenance(ctx context.Context, target DocType, orgID int64, source DocType, sourceID int64) (*Document, error) {
	spec, err := specFor(target)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE org_id=$1 AND source_type=$2 AND source_id=$3 LIMIT 1`,
		headerColumns, spec.table)
	row := r.tx.QueryRow(ctx, query, orgID, string(source), sourceID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *txRepository) InsertDocument(ctx context.Context, docType DocType, doc Document) (int64, error) {
	spec, err := specFor(docType)
	if err != nil {
		return 0, err
	}
	metaJSON, err := json.Marshal(doc.Meta)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`INSERT INTO %s
	(org_id, number, customer_id, supplier_id, source_type, source_id,
	 subtotal, discount_total, tax_total, shipping_total, grand_total,
	 currency, status, issue_date, meta, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW(),NOW())
	RETURNING id`, spec.table)

	var id int64
	err = r.tx.QueryRow(ctx, query,
		doc.OrgID, doc.Number, nullInt(doc.CustomerID), nullInt(doc.SupplierID),
		nullString(string(doc.SourceType)), nullInt(doc.SourceID),
		doc.Subtotal, doc.DiscountTotal, doc.TaxTotal, doc.ShippingTotal, doc.GrandTotal,
		doc.Currency, string(doc.Status), doc.IssueDate, metaJSON).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateDerivation
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertLines(ctx context.Context, docType DocType, orgID, docID int64, lines []DocumentLine) error {
	spec, err := specFor(docType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s
	(org_id, doc_id, line_no, item_id, description, qty, unit, unit_price, discount_pct, line_total)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, spec.lines)
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, query,
			orgID, docID, line.LineNo, nullInt(line.ItemID), line.Description,
			line.Qty, line.Unit, line.UnitPrice, line.DiscountPct, line.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, docType DocType, orgID, id int64, status Status) error {
	spec, err := specFor(docType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET status=$1, updated_at=NOW() WHERE org_id=$2 AND id=$3`, spec.table)
	tag, err := r.tx.Exec(ctx, query, string(status), orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) NextNumber(ctx context.Context, orgID int64, docType DocType, numbering Numbering, prefix string, scopeDate time.Time) (string, error) {
	spec, err := specFor(docType)
	if err != nil {
		return "", err
	}
	req := docnum.Request{
		OrgID:     orgID,
		DocType:   spec.docType,
		Prefix:    prefix,
		Width:     4,
		ScopeDate: scopeDate,
	}
	var gen docnum.Generator
	switch numbering {
	case NumberingScan:
		gen = docnum.ScanGenerator{Table: spec.table, Column: "number"}
	default:
		gen = docnum.CounterGenerator{}
	}
	return gen.Next(ctx, r.tx, req)
}

func getDocument(ctx context.Context, q querier, docType DocType, orgID, id int64) (Document, error) {
	spec, err := specFor(docType)
	if err != nil {
		return Document{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE org_id=$1 AND id=$2`, headerColumns, spec.table)
	doc, err := scanDocument(q.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: %s %d", shared.ErrNotFound, docType, id)
		}
		return Document{}, err
	}
	return doc, nil
}

func getLines(ctx context.Context, q querier, docType DocType, orgID, docID int64) ([]DocumentLine, error) {
	spec, err := specFor(docType)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, doc_id, line_no, COALESCE(item_id, 0), description, qty, unit, unit_price, discount_pct, line_total
	FROM %s WHERE org_id=$1 AND doc_id=$2 ORDER BY line_no ASC, id ASC`, spec.lines)
	rows, err := q.Query(ctx, query, orgID, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []DocumentLine
	for rows.Next() {
		var line DocumentLine
		if err := rows.Scan(&line.ID, &line.DocID, &line.LineNo, &line.ItemID, &line.Description,
			&line.Qty, &line.Unit, &line.UnitPrice, &line.DiscountPct, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var sourceType string
	var metaJSON []byte
	err := row.Scan(&doc.ID, &doc.OrgID, &doc.Number, &doc.CustomerID, &doc.SupplierID,
		&sourceType, &doc.SourceID,
		&doc.Subtotal, &doc.DiscountTotal, &doc.TaxTotal, &doc.ShippingTotal, &doc.GrandTotal,
		&doc.Currency, &doc.Status, &doc.IssueDate, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	doc.SourceType = DocType(sourceType)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &doc.Meta); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
