package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// DecrementStock decrements a product's stock as a single guarded statement.
// Stock is shared by every concurrently syncing terminal, so the decrement
// must happen at the storage layer, never as read-compute-write.
func (r *PostgresRepository) DecrementStock(ctx context.Context, productID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("decrement stock for product %d: quantity must be positive", productID)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock_quantity >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// Zero rows: either the product is gone or the stock guard failed.
	var exists bool
	err = r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if !exists {
		return ErrProductNotFound
	}
	return ErrInsufficientStock
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (*Product, error) {
	p := &Product{}
	err := r.db.GetContext(ctx, p, `
		SELECT id, store_id, name, category, price_cents, stock_quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) GetStock(ctx context.Context, id int) (int, error) {
	var stock int
	err := r.db.GetContext(ctx, &stock, `SELECT stock_quantity FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	return stock, nil
}
