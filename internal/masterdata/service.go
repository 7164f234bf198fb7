package masterdata

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service validates and lists master data.
type Service struct {
	repo RepositoryPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RequireWarehouse fails with a validation error when the warehouse does
// not exist or is inactive for the organisation.
func (s *Service) RequireWarehouse(ctx context.Context, orgID, warehouseID int64) error {
	ok, err := s.repo.WarehouseExists(ctx, orgID, warehouseID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: warehouse %d not found", shared.ErrValidation, warehouseID)
	}
	return nil
}

// RequireItem fails with a validation error when the item does not exist
// or is inactive for the organisation.
func (s *Service) RequireItem(ctx context.Context, orgID, itemID int64) error {
	ok, err := s.repo.ItemExists(ctx, orgID, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: item %d not found", shared.ErrValidation, itemID)
	}
	return nil
}

// Warehouses lists the organisation's warehouses.
func (s *Service) Warehouses(ctx context.Context) ([]Warehouse, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return nil, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	return s.repo.ListWarehouses(ctx, orgID)
}

// Items lists the organisation's items.
func (s *Service) Items(ctx context.Context, limit, offset int) ([]Item, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return nil, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	return s.repo.ListItems(ctx, orgID, limit, offset)
}
