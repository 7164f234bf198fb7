package documents

import (
	"context"
	"time"
)

// TxRepository exposes the operations available inside a conversion
// transaction.
type TxRepository interface {
	GetDocument(ctx context.Context, docType DocType, orgID, id int64) (Document, error)
	GetLines(ctx context.Context, docType DocType, orgID, docID int64) ([]DocumentLine, error)
	// FindByProvenance returns the document derived from the given
	// source, or nil when no derivation exists yet.
	FindByProvenance(ctx context.Context, target DocType, orgID int64, source DocType, sourceID int64) (*Document, error)
	InsertDocument(ctx context.Context, docType DocType, doc Document) (int64, error)
	InsertLines(ctx context.Context, docType DocType, orgID, docID int64, lines []DocumentLine) error
	UpdateStatus(ctx context.Context, docType DocType, orgID, id int64, status Status) error
	NextNumber(ctx context.Context, orgID int64, docType DocType, numbering Numbering, prefix string, scopeDate time.Time) (string, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, docType DocType, orgID, id int64) (Document, error)
	List(ctx context.Context, docType DocType, orgID int64, filter ListFilter) ([]Document, int, error)
}

// ListFilter narrows document listings.
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}
