package docnum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ScanGenerator derives the next number from the greatest existing number
// matching the prefix in the target table.
//
// Not safe under concurrent writers: two transactions can read the same
// maximum and issue the same number. Accepted for low write concurrency
// per organisation; document types where duplicates matter use
// CounterGenerator instead.
type ScanGenerator struct {
	Table  string
	Column string
}

// Next scans for the current maximum and returns max+1, starting at 1.
func (g ScanGenerator) Next(ctx context.Context, q Querier, req Request) (string, error) {
	year := req.year()
	pattern := fmt.Sprintf("%s-%d-%%", req.Prefix, year)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE org_id=$1 AND %s LIKE $2 ORDER BY %s DESC LIMIT 1`,
		g.Column, g.Table, g.Column, g.Column)

	var max string
	err := q.QueryRow(ctx, query, req.OrgID, pattern).Scan(&max)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Format(req.Prefix, year, 1, req.width()), nil
		}
		return "", fmt.Errorf("docnum: scan %s: %w", g.Table, err)
	}

	seq, err := parseSeq(max)
	if err != nil {
		return "", err
	}
	return Format(req.Prefix, year, seq+1, req.width()), nil
}
