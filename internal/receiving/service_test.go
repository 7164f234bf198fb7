package receiving

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/docnum"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryReceipts struct {
	mu       sync.Mutex
	receipts map[int64]Receipt
	moves    []ledger.Move
	nextID   int64
	counter  int64
}

func newMemoryReceipts() *memoryReceipts {
	return &memoryReceipts{receipts: make(map[int64]Receipt)}
}

func (m *memoryReceipts) Create(ctx context.Context, receipt Receipt, lines []ReceiptLine) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	receipt.Number = docnum.Format("GRN", receipt.ReceiptDate.Year(), m.counter, 4)
	m.nextID++
	receipt.ID = m.nextID
	for i := range lines {
		m.nextID++
		lines[i].ID = m.nextID
		lines[i].ReceiptID = receipt.ID
	}
	receipt.Lines = lines
	m.receipts[receipt.ID] = receipt
	return receipt, nil
}

func (m *memoryReceipts) Get(ctx context.Context, orgID, id int64) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[id]
	if !ok || receipt.OrgID != orgID {
		return Receipt{}, fmt.Errorf("%w: receipt %d", shared.ErrNotFound, id)
	}
	return receipt, nil
}

func (m *memoryReceipts) List(ctx context.Context, orgID int64, filter ListFilter) ([]Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Receipt
	for _, receipt := range m.receipts {
		if receipt.OrgID != orgID {
			continue
		}
		if filter.Status != "" && receipt.Status != filter.Status {
			continue
		}
		out = append(out, receipt)
	}
	return out, nil
}

func (m *memoryReceipts) Post(ctx context.Context, orgID, id int64, postedAt time.Time, buildMoves func(Receipt) ([]ledger.Move, error)) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[id]
	if !ok || receipt.OrgID != orgID {
		return Receipt{}, fmt.Errorf("%w: receipt %d", shared.ErrNotFound, id)
	}
	if receipt.Status == ReceiptStatusPosted {
		return Receipt{}, ErrAlreadyPosted
	}
	moves, err := buildMoves(receipt)
	if err != nil {
		return Receipt{}, err
	}
	for _, move := range moves {
		if err := move.Validate(); err != nil {
			return Receipt{}, err
		}
	}
	m.moves = append(m.moves, moves...)
	receipt.Status = ReceiptStatusPosted
	receipt.PostedAt = &postedAt
	m.receipts[id] = receipt
	return receipt, nil
}

type fakeMasterData struct{}

func (fakeMasterData) RequireWarehouse(ctx context.Context, orgID, warehouseID int64) error {
	if warehouseID > 10 {
		return shared.ErrValidation
	}
	return nil
}

func (fakeMasterData) RequireItem(ctx context.Context, orgID, itemID int64) error {
	if itemID > 100 {
		return shared.ErrValidation
	}
	return nil
}

func newReceivingService(repo *memoryReceipts, caps *db.Capabilities) *Service {
	if caps == nil {
		caps = db.AllCapabilities()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, fakeMasterData{}, nil, nil, nil, caps, logger)
}

func receivingCtx() context.Context {
	return shared.ContextWithOrg(context.Background(), 1)
}

func draftReceipt(t *testing.T, svc *Service) Receipt {
	t.Helper()
	receipt, err := svc.Create(receivingCtx(), CreateInput{
		SupplierID:  3,
		WarehouseID: 1,
		ReceiptDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 10, Qty: 5, UnitCost: 4},
			{ItemID: 11, Qty: 2, UnitCost: 12.5},
		},
	})
	require.NoError(t, err)
	return receipt
}

func TestCreateReceiptNumbersAndTotals(t *testing.T) {
	repo := newMemoryReceipts()
	svc := newReceivingService(repo, nil)

	receipt := draftReceipt(t, svc)
	require.Equal(t, "GRN-2025-0001", receipt.Number)
	require.Equal(t, ReceiptStatusDraft, receipt.Status)
	require.Len(t, receipt.Lines, 2)
	require.InDelta(t, 20, receipt.Lines[0].TotalCost, 0.001)
	require.InDelta(t, 25, receipt.Lines[1].TotalCost, 0.001)
}

func TestCreateReceiptValidation(t *testing.T) {
	svc := newReceivingService(newMemoryReceipts(), nil)

	_, err := svc.Create(receivingCtx(), CreateInput{WarehouseID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(receivingCtx(), CreateInput{
		WarehouseID: 99,
		Lines:       []LineInput{{ItemID: 10, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(receivingCtx(), CreateInput{
		WarehouseID: 1,
		Lines:       []LineInput{{ItemID: 10, Qty: -2}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostReceiptWritesLedgerMoves(t *testing.T) {
	repo := newMemoryReceipts()
	svc := newReceivingService(repo, nil)
	receipt := draftReceipt(t, svc)

	posted, err := svc.Post(receivingCtx(), receipt.ID)
	require.NoError(t, err)
	require.Equal(t, ReceiptStatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)

	require.Len(t, repo.moves, 2)
	for i, move := range repo.moves {
		require.Equal(t, ledger.KindGRN, move.Kind)
		require.Equal(t, ledger.DirectionIn, move.Direction)
		require.EqualValues(t, 1, move.WarehouseID)
		require.Equal(t, "goods_receipt_lines", move.RefTable)
		require.Equal(t, receipt.Lines[i].ID, move.RefID)
		require.Equal(t, receipt.Number, move.Meta["receipt_number"])
		require.Equal(t, receipt.ReceiptDate, move.MoveDate)
	}
	require.InDelta(t, 20, repo.moves[0].TotalCost, 0.001)
}

func TestPostReceiptTwiceConflicts(t *testing.T) {
	repo := newMemoryReceipts()
	svc := newReceivingService(repo, nil)
	receipt := draftReceipt(t, svc)

	_, err := svc.Post(receivingCtx(), receipt.ID)
	require.NoError(t, err)

	_, err = svc.Post(receivingCtx(), receipt.ID)
	require.ErrorIs(t, err, ErrAlreadyPosted)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, repo.moves, 2)
}

func TestPostReceiptSchemaUnavailable(t *testing.T) {
	repo := newMemoryReceipts()
	svc := newReceivingService(repo, db.CapabilitiesFor(db.CapabilityReceipts, db.CapabilityDocCounters))
	receipt := draftReceipt(t, svc)

	_, err := svc.Post(receivingCtx(), receipt.ID)
	require.ErrorIs(t, err, shared.ErrSchemaUnavailable)
}

func TestPostReceiptScopedToOrganisation(t *testing.T) {
	repo := newMemoryReceipts()
	svc := newReceivingService(repo, nil)
	receipt := draftReceipt(t, svc)

	_, err := svc.Post(shared.ContextWithOrg(context.Background(), 2), receipt.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
