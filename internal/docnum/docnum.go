// Package docnum issues organisation-scoped, year-scoped document numbers.
//
// Two strategies coexist: a scan over existing numbers kept for migration
// compatibility, and a locked counter row which is the safe default. Both
// run on the caller's transaction so the issued number commits or rolls
// back together with the document that consumes it.
package docnum

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx.Tx the generators need.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Request describes the number being issued.
type Request struct {
	OrgID     int64
	DocType   string
	Prefix    string
	Width     int
	ScopeDate time.Time
}

// Generator issues the next formatted document number.
type Generator interface {
	Next(ctx context.Context, q Querier, req Request) (string, error)
}

func (r Request) year() int {
	if r.ScopeDate.IsZero() {
		return time.Now().UTC().Year()
	}
	return r.ScopeDate.Year()
}

func (r Request) width() int {
	if r.Width <= 0 {
		return 4
	}
	return r.Width
}

// Format renders PREFIX-YYYY-NNNN with zero padding.
func Format(prefix string, year int, n int64, width int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, width, n)
}

// parseSeq extracts the trailing zero-padded digit group of a formatted number.
func parseSeq(number string) (int64, error) {
	idx := strings.LastIndexByte(number, '-')
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("docnum: malformed number %q", number)
	}
	n, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("docnum: malformed number %q: %w", number, err)
	}
	return n, nil
}
