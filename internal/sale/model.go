package sale

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Sale is the canonical ledger record. Immutable once created except for
// Status transitions. LocalID is set only for sales materialized from the
// offline queue; the unique index on it is what makes reconciliation
// idempotent.
type Sale struct {
	ID            int64     `db:"id" json:"id"`
	StoreID       string    `db:"store_id" json:"store_id"`
	BranchID      *string   `db:"branch_id" json:"branch_id,omitempty"`
	UserID        *int      `db:"user_id" json:"user_id,omitempty"`
	CustomerID    *string   `db:"customer_id" json:"customer_id,omitempty"`
	LocalID       *string   `db:"local_id" json:"local_id,omitempty"`
	TotalCents    int64     `db:"total_cents" json:"total_cents"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	Status        Status    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	Items []Item `db:"-" json:"items,omitempty"`
}

type Item struct {
	ID             int64 `db:"id" json:"id"`
	SaleID         int64 `db:"sale_id" json:"sale_id"`
	ProductID      int   `db:"product_id" json:"product_id"`
	Quantity       int   `db:"quantity" json:"quantity"`
	UnitPriceCents int64 `db:"unit_price_cents" json:"unit_price_cents"`
}

// Payload is the sale-creation shape shared by the direct POS endpoint and
// the offline queue: a terminal queues exactly what it would have posted.
type Payload struct {
	Items         []PayloadItem `json:"items" binding:"required,min=1,dive"`
	TotalCents    int64         `json:"total_cents" binding:"min=0"`
	PaymentMethod string        `json:"payment_method" binding:"required"`
	CustomerID    *string       `json:"customer_id,omitempty"`
}

type PayloadItem struct {
	ProductID      int   `json:"product_id" binding:"required"`
	Quantity       int   `json:"quantity" binding:"required,min=1"`
	UnitPriceCents int64 `json:"unit_price_cents" binding:"min=0"`
}
