package sale

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrSaleNotFound = errors.New("sale not found")

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the sale and its line items in one transaction. The ledger
// entry is all-or-nothing; inventory is adjusted separately.
func (r *PostgresRepository) Create(ctx context.Context, s *Sale) (*Sale, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created := &Sale{}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO sales (store_id, branch_id, user_id, customer_id, local_id, total_cents, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, store_id, branch_id, user_id, customer_id, local_id, total_cents, payment_method, status, created_at, updated_at
	`, s.StoreID, s.BranchID, s.UserID, s.CustomerID, s.LocalID, s.TotalCents, s.PaymentMethod, s.Status).StructScan(created)
	if err != nil {
		return nil, err
	}

	for _, item := range s.Items {
		var itemID int64
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, created.ID, item.ProductID, item.Quantity, item.UnitPriceCents).Scan(&itemID)
		if err != nil {
			return nil, err
		}
		created.Items = append(created.Items, Item{
			ID:             itemID,
			SaleID:         created.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByLocalID looks a sale up by its offline idempotency key.
func (r *PostgresRepository) GetByLocalID(ctx context.Context, localID string) (*Sale, error) {
	s := &Sale{}
	err := r.db.GetContext(ctx, s, `
		SELECT id, store_id, branch_id, user_id, customer_id, local_id, total_cents, payment_method, status, created_at, updated_at
		FROM sales
		WHERE local_id = $1
	`, localID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Sale, error) {
	s := &Sale{}
	err := r.db.GetContext(ctx, s, `
		SELECT id, store_id, branch_id, user_id, customer_id, local_id, total_cents, payment_method, status, created_at, updated_at
		FROM sales
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}

	items := []Item{}
	err = r.db.SelectContext(ctx, &items, `
		SELECT id, sale_id, product_id, quantity, unit_price_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sales
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]Sale, error) {
	if limit <= 0 {
		limit = 50
	}

	sales := []Sale{}
	err := r.db.SelectContext(ctx, &sales, `
		SELECT id, store_id, branch_id, user_id, customer_id, local_id, total_cents, payment_method, status, created_at, updated_at
		FROM sales
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, storeID, limit, offset)
	return sales, err
}
