package sale

import (
	"context"
	"errors"
	"fmt"

	"tillpoint/internal/logger"
	"tillpoint/internal/metrics"
	"tillpoint/internal/product"
)

var ErrEmptySale = errors.New("sale must contain at least one item")

// CreateResult reports what a create actually did. Reused means the sale
// already existed for the given local id and nothing was written.
type CreateResult struct {
	Sale              *Sale
	Reused            bool
	InventoryWarnings []string
}

type Service interface {
	Create(ctx context.Context, storeID string, branchID *string, userID *int, localID *string, payload Payload) (*CreateResult, error)
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, storeID string, limit, offset int) ([]Sale, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type service struct {
	saleRepo  Repository
	inventory product.Adjuster
}

func NewService(saleRepo Repository, inventory product.Adjuster) Service {
	return &service{saleRepo: saleRepo, inventory: inventory}
}

// Create materializes a sale and decrements stock for each line item.
//
// When localID is set, an existing sale with that key is reused as-is: no
// second ledger entry, no second decrement. This is the property that lets
// the offline reconciler re-run safely after a crash.
//
// Inventory is best-effort: a failed decrement is recorded as a warning and
// never rolls the sale back. The ledger is strict, stock counters are not.
func (s *service) Create(ctx context.Context, storeID string, branchID *string, userID *int, localID *string, payload Payload) (*CreateResult, error) {
	if len(payload.Items) == 0 {
		return nil, ErrEmptySale
	}
	for _, item := range payload.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: quantity must be positive", item.ProductID)
		}
	}

	if localID != nil {
		existing, err := s.saleRepo.GetByLocalID(ctx, *localID)
		if err == nil {
			logger.Infof("Sale reused for local id %s: Sale=%d", *localID, existing.ID)
			return &CreateResult{Sale: existing, Reused: true}, nil
		}
		if !errors.Is(err, ErrSaleNotFound) {
			return nil, err
		}
	}

	toCreate := &Sale{
		StoreID:       storeID,
		BranchID:      branchID,
		UserID:        userID,
		CustomerID:    payload.CustomerID,
		LocalID:       localID,
		TotalCents:    payload.TotalCents,
		PaymentMethod: payload.PaymentMethod,
		Status:        StatusCompleted,
	}
	for _, item := range payload.Items {
		toCreate.Items = append(toCreate.Items, Item{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	created, err := s.saleRepo.Create(ctx, toCreate)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Sale: created}
	for _, item := range payload.Items {
		if err := s.inventory.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			warning := fmt.Sprintf("product %d: %v", item.ProductID, err)
			result.InventoryWarnings = append(result.InventoryWarnings, warning)
			logger.Errorf("Stock decrement failed for sale %d, %s", created.ID, warning)
			metrics.RecordInventoryAdjustmentFailure()
		}
	}

	return result, nil
}

func (s *service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.saleRepo.GetByID(ctx, id)
}

func (s *service) ListSales(ctx context.Context, storeID string, limit, offset int) ([]Sale, error) {
	return s.saleRepo.ListByStore(ctx, storeID, limit, offset)
}

func (s *service) UpdateStatus(ctx context.Context, id int64, status Status) error {
	return s.saleRepo.UpdateStatus(ctx, id, status)
}
