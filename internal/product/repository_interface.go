package product

import "context"

// Adjuster is the only write surface the sale pipeline has into inventory.
type Adjuster interface {
	DecrementStock(ctx context.Context, productID, quantity int) error
}

type Repository interface {
	Adjuster
	GetByID(ctx context.Context, id int) (*Product, error)
	GetStock(ctx context.Context, id int) (int, error)
}
