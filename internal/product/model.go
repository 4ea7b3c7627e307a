package product

import "time"

type Product struct {
	ID            int       `db:"id" json:"id"`
	StoreID       string    `db:"store_id" json:"store_id"`
	Name          string    `db:"name" json:"name"`
	Category      string    `db:"category" json:"category"`
	PriceCents    int64     `db:"price_cents" json:"price_cents"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
