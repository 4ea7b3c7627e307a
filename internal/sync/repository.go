package sync

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrEntryNotFound = errors.New("offline sale entry not found")

type PostgresQueueStore struct {
	db *sqlx.DB
}

func NewQueueStore(db *sqlx.DB) *PostgresQueueStore {
	return &PostgresQueueStore{db: db}
}

const entryColumns = `id, local_id, device_id, store_id, branch_id, sale_data, status, sync_attempts, last_sync_attempt, synced_sale_id, error_message, created_at, updated_at`

// Append stores an uploaded entry. Re-uploads of a known local id return the
// stored entry untouched, so a device may push the same queue twice.
func (r *PostgresQueueStore) Append(ctx context.Context, e *Entry) (*Entry, error) {
	created := &Entry{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO offline_sale_entries (local_id, device_id, store_id, branch_id, sale_data, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		ON CONFLICT (local_id) DO NOTHING
		RETURNING `+entryColumns+`
	`, e.LocalID, e.DeviceID, e.StoreID, e.BranchID, e.SaleData).StructScan(created)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return r.GetByLocalID(ctx, e.LocalID)
}

func (r *PostgresQueueStore) GetByLocalID(ctx context.Context, localID string) (*Entry, error) {
	e := &Entry{}
	err := r.db.GetContext(ctx, e, `
		SELECT `+entryColumns+`
		FROM offline_sale_entries
		WHERE local_id = $1
	`, localID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *PostgresQueueStore) ListPending(ctx context.Context, storeID string, branchID *string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM offline_sale_entries
		WHERE store_id = $1
		  AND status = 'pending'
		  AND ($2::text IS NULL OR branch_id = $2)
		ORDER BY created_at ASC
		LIMIT $3
	`, storeID, branchID, limit)
	return entries, err
}

func (r *PostgresQueueStore) MarkSynced(ctx context.Context, localID string, saleID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE offline_sale_entries
		SET status = 'synced',
		    synced_sale_id = $2,
		    last_sync_attempt = $3,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE local_id = $1
	`, localID, saleID, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RecordFailure bumps the retry accounting and keeps the entry eligible for
// the next sync cycle.
func (r *PostgresQueueStore) RecordFailure(ctx context.Context, localID, message string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE offline_sale_entries
		SET sync_attempts = sync_attempts + 1,
		    last_sync_attempt = $3,
		    error_message = $2,
		    updated_at = NOW()
		WHERE local_id = $1
	`, localID, message, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkFailed is the terminal transition, taken only when a retry ceiling is
// configured and reached.
func (r *PostgresQueueStore) MarkFailed(ctx context.Context, localID, message string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE offline_sale_entries
		SET status = 'failed',
		    sync_attempts = sync_attempts + 1,
		    last_sync_attempt = $3,
		    error_message = $2,
		    updated_at = NOW()
		WHERE local_id = $1
	`, localID, message, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresQueueStore) Remove(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM offline_sale_entries
		WHERE local_id = $1
	`, localID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrEntryNotFound
	}
	return nil
}
