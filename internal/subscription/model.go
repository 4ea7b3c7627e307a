package subscription

import "time"

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// Record is the persisted subscription state of a store. IsBlocked is sticky:
// once true, only a renewal event clears it.
type Record struct {
	StoreID            string        `db:"store_id" json:"store_id"`
	TrialEndsAt        time.Time     `db:"trial_ends_at" json:"trial_ends_at"`
	SubscriptionExpiry time.Time     `db:"subscription_expiry" json:"subscription_expiry"`
	IsBlocked          bool          `db:"is_blocked" json:"is_blocked"`
	IsBanned           bool          `db:"is_banned" json:"is_banned"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"payment_status"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// Status is derived from a Record and the current time. It is recomputed on
// every check and never persisted. The JSON keys are the wire contract
// consumed by the dashboard clients.
type Status struct {
	IsActive        bool   `json:"isActive"`
	IsExpired       bool   `json:"isExpired"`
	IsBlocked       bool   `json:"isBlocked"`
	DaysRemaining   int    `json:"daysRemaining"`
	GracePeriodDays int    `json:"gracePeriodDays"`
	Message         string `json:"message"`

	// ShouldBlock marks a record whose grace period has elapsed but whose
	// stored is_blocked flag has not been persisted yet.
	ShouldBlock bool `json:"-"`
}
