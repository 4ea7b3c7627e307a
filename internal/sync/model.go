package sync

import (
	"encoding/json"
	"time"

	"tillpoint/internal/sale"

	"github.com/jmoiron/sqlx/types"
)

type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSynced  EntryStatus = "synced"
	StatusFailed  EntryStatus = "failed"
)

// Entry is a sale captured by a terminal while disconnected. LocalID is the
// client-generated idempotency key (device id + monotonic counter); exactly
// one canonical sale may ever exist per distinct LocalID.
type Entry struct {
	ID              int64          `db:"id" json:"id"`
	LocalID         string         `db:"local_id" json:"local_id"`
	DeviceID        string         `db:"device_id" json:"device_id"`
	StoreID         string         `db:"store_id" json:"store_id"`
	BranchID        *string        `db:"branch_id" json:"branch_id,omitempty"`
	SaleData        types.JSONText `db:"sale_data" json:"sale_data"`
	Status          EntryStatus    `db:"status" json:"status"`
	SyncAttempts    int            `db:"sync_attempts" json:"sync_attempts"`
	LastSyncAttempt *time.Time     `db:"last_sync_attempt" json:"last_sync_attempt,omitempty"`
	SyncedSaleID    *int64         `db:"synced_sale_id" json:"synced_sale_id,omitempty"`
	ErrorMessage    *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Payload decodes the queued sale data into the canonical creation shape.
func (e *Entry) Payload() (sale.Payload, error) {
	var p sale.Payload
	err := json.Unmarshal(e.SaleData, &p)
	return p, err
}

// ItemResult is the per-entry outcome returned to the device so it can purge
// synced entries and retain failed ones. The JSON keys are the wire contract.
type ItemResult struct {
	LocalID  string   `json:"localId"`
	Success  bool     `json:"success"`
	SaleID   *int64   `json:"saleId,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
