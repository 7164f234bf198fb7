package receiving

import (
	"context"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// ListFilter narrows receipt listings.
type ListFilter struct {
	Status ReceiptStatus
	Limit  int
	Offset int
}

// RepositoryPort abstracts receipt persistence.
type RepositoryPort interface {
	// Create numbers and stores a draft receipt with its lines in one
	// transaction.
	Create(ctx context.Context, receipt Receipt, lines []ReceiptLine) (Receipt, error)
	Get(ctx context.Context, orgID, id int64) (Receipt, error)
	List(ctx context.Context, orgID int64, filter ListFilter) ([]Receipt, error)
	// Post locks the receipt, derives ledger moves from it via
	// buildMoves and writes the status flip and the moves in one
	// transaction. Returns ErrAlreadyPosted for a posted receipt.
	Post(ctx context.Context, orgID, id int64, postedAt time.Time, buildMoves func(Receipt) ([]ledger.Move, error)) (Receipt, error)
}
