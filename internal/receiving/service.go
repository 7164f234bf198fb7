package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// CreateInput describes a new draft receipt.
type CreateInput struct {
	SupplierID      int64
	WarehouseID     int64
	PurchaseOrderID int64
	ReceiptDate     time.Time
	Meta            map[string]any
	Lines           []LineInput
}

// LineInput is one received item.
type LineInput struct {
	ItemID   int64
	Qty      float64
	UnitCost float64
}

// Service implements goods receipt creation and posting.
type Service struct {
	repo   RepositoryPort
	md     ledger.MasterData
	cache  *ledger.Cache
	idem   *shared.IdempotencyStore
	audit  *shared.AuditLogger
	caps   *db.Capabilities
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo RepositoryPort, md ledger.MasterData, cache *ledger.Cache, idem *shared.IdempotencyStore, audit *shared.AuditLogger, caps *db.Capabilities, logger *slog.Logger) *Service {
	return &Service{repo: repo, md: md, cache: cache, idem: idem, audit: audit, caps: caps, logger: logger}
}

// Create stores a draft receipt.
func (s *Service) Create(ctx context.Context, input CreateInput) (Receipt, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return Receipt{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if !s.caps.Has(db.CapabilityReceipts) || !s.caps.Has(db.CapabilityDocCounters) {
		return Receipt{}, fmt.Errorf("%w: goods receipts not provisioned", shared.ErrSchemaUnavailable)
	}
	if len(input.Lines) == 0 {
		return Receipt{}, fmt.Errorf("%w: receipt requires at least one line", shared.ErrValidation)
	}
	if err := s.md.RequireWarehouse(ctx, orgID, input.WarehouseID); err != nil {
		return Receipt{}, err
	}

	lines := make([]ReceiptLine, 0, len(input.Lines))
	for i, line := range input.Lines {
		if line.Qty <= 0 {
			return Receipt{}, fmt.Errorf("%w: line %d qty must be positive", shared.ErrValidation, i+1)
		}
		if line.UnitCost < 0 {
			return Receipt{}, fmt.Errorf("%w: line %d unit cost must not be negative", shared.ErrValidation, i+1)
		}
		if err := s.md.RequireItem(ctx, orgID, line.ItemID); err != nil {
			return Receipt{}, err
		}
		lines = append(lines, ReceiptLine{
			LineNo:    i + 1,
			ItemID:    line.ItemID,
			Qty:       line.Qty,
			UnitCost:  line.UnitCost,
			TotalCost: line.Qty * line.UnitCost,
		})
	}

	receiptDate := input.ReceiptDate
	if receiptDate.IsZero() {
		receiptDate = time.Now().UTC()
	}
	receipt, err := s.repo.Create(ctx, Receipt{
		OrgID:           orgID,
		SupplierID:      input.SupplierID,
		WarehouseID:     input.WarehouseID,
		PurchaseOrderID: input.PurchaseOrderID,
		Status:          ReceiptStatusDraft,
		ReceiptDate:     receiptDate,
		Meta:            input.Meta,
	}, lines)
	if err != nil {
		return Receipt{}, err
	}

	s.recordAudit(ctx, orgID, "receiving.create", receipt.ID, map[string]any{"number": receipt.Number})
	return receipt, nil
}

// Post flips the receipt to POSTED and appends one inbound grn move per
// line, all in one transaction. Posting a posted receipt fails with a
// conflict.
func (s *Service) Post(ctx context.Context, id int64) (Receipt, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return Receipt{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if !s.caps.Has(db.CapabilityReceipts) || !s.caps.Has(db.CapabilityInventory) {
		return Receipt{}, fmt.Errorf("%w: receipt posting not provisioned", shared.ErrSchemaUnavailable)
	}

	current, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return Receipt{}, err
	}
	idemKey := fmt.Sprintf("grn:%d:%s", orgID, current.Number)
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "receiving"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Receipt{}, ErrAlreadyPosted
			}
			return Receipt{}, err
		}
	}

	postedAt := time.Now().UTC()
	receipt, err := s.repo.Post(ctx, orgID, id, postedAt, func(r Receipt) ([]ledger.Move, error) {
		if len(r.Lines) == 0 {
			return nil, fmt.Errorf("%w: receipt has no lines to post", shared.ErrValidation)
		}
		moves := make([]ledger.Move, 0, len(r.Lines))
		for _, line := range r.Lines {
			moves = append(moves, ledger.Move{
				OrgID:       r.OrgID,
				ItemID:      line.ItemID,
				WarehouseID: r.WarehouseID,
				Kind:        ledger.KindGRN,
				Direction:   ledger.DirectionIn,
				Qty:         line.Qty,
				UnitCost:    line.UnitCost,
				TotalCost:   line.TotalCost,
				MoveDate:    r.ReceiptDate,
				RefTable:    "goods_receipt_lines",
				RefID:       line.ID,
				Meta:        map[string]any{"receipt_number": r.Number},
			})
		}
		return moves, nil
	})
	if err != nil {
		// The key was reserved before the transaction; release it so
		// the receipt can be posted again after the failure.
		if s.idem != nil && !errors.Is(err, ErrAlreadyPosted) {
			if delErr := s.idem.Delete(ctx, idemKey); delErr != nil {
				s.logger.WarnContext(ctx, "idempotency rollback failed",
					slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		return Receipt{}, err
	}

	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "on-hand cache invalidation failed", slog.Any("error", err))
	}
	s.recordAudit(ctx, orgID, "receiving.post", receipt.ID, map[string]any{
		"number":     receipt.Number,
		"move_count": len(receipt.Lines),
	})
	return receipt, nil
}

// Get returns one receipt with lines.
func (s *Service) Get(ctx context.Context, id int64) (Receipt, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return Receipt{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	return s.repo.Get(ctx, orgID, id)
}

// List returns receipts for the calling organisation.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Receipt, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return nil, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	return s.repo.List(ctx, orgID, filter)
}

func (s *Service) recordAudit(ctx context.Context, orgID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		Action:   action,
		Entity:   "goods_receipts",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
