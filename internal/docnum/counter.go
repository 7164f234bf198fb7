package docnum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CounterGenerator issues numbers from a locked counter row per
// (organisation, document type, year). The row lock serialises competing
// transactions, so numbers are unique as long as the consuming insert
// commits in the same transaction.
type CounterGenerator struct{}

// Next locks the counter row, seeds it when absent, and returns the
// formatted number.
func (CounterGenerator) Next(ctx context.Context, q Querier, req Request) (string, error) {
	year := req.year()

	var next int64
	err := q.QueryRow(ctx,
		`SELECT next_no FROM doc_counters WHERE org_id=$1 AND doc_type=$2 AND year=$3 FOR UPDATE`,
		req.OrgID, req.DocType, year).Scan(&next)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := q.Exec(ctx,
			`INSERT INTO doc_counters (org_id, doc_type, year, next_no) VALUES ($1, $2, $3, 2)`,
			req.OrgID, req.DocType, year); err != nil {
			return "", fmt.Errorf("docnum: seed counter: %w", err)
		}
		next = 1
	case err != nil:
		return "", fmt.Errorf("docnum: lock counter: %w", err)
	default:
		if _, err := q.Exec(ctx,
			`UPDATE doc_counters SET next_no=next_no+1 WHERE org_id=$1 AND doc_type=$2 AND year=$3`,
			req.OrgID, req.DocType, year); err != nil {
			return "", fmt.Errorf("docnum: advance counter: %w", err)
		}
	}

	return Format(req.Prefix, year, next, req.width()), nil
}
