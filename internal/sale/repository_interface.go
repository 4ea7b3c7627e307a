package sale

import "context"

type Repository interface {
	Create(ctx context.Context, s *Sale) (*Sale, error)
	GetByLocalID(ctx context.Context, localID string) (*Sale, error)
	GetByID(ctx context.Context, id int64) (*Sale, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ListByStore(ctx context.Context, storeID string, limit, offset int) ([]Sale, error)
}
