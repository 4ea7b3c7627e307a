package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrRecordNotFound = errors.New("subscription record not found")

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByStoreID(ctx context.Context, storeID string) (*Record, error) {
	rec := &Record{}
	err := r.db.GetContext(ctx, rec, `
		SELECT store_id, trial_ends_at, subscription_expiry, is_blocked, is_banned, payment_status, created_at, updated_at
		FROM subscription_records
		WHERE store_id = $1
	`, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// CompareAndSetBlocked flips is_blocked only when the stored value still
// matches expected. A false return means another writer got there first,
// which callers treat as already done. A blind overwrite here would let a
// stale gate check clobber a concurrent renewal.
func (r *PostgresRepository) CompareAndSetBlocked(ctx context.Context, storeID string, expected, next bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscription_records
		SET is_blocked = $3,
		    updated_at = NOW()
		WHERE store_id = $1
		  AND is_blocked = $2
	`, storeID, expected, next)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Renew applies a verified payment event as a single atomic update. This is
// the only write that clears is_blocked.
func (r *PostgresRepository) Renew(ctx context.Context, storeID string, newExpiry time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscription_records
		SET subscription_expiry = $2,
		    is_blocked = FALSE,
		    payment_status = 'paid',
		    updated_at = NOW()
		WHERE store_id = $1
	`, storeID, newExpiry)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateTrial(ctx context.Context, storeID string, trialEndsAt time.Time) (*Record, error) {
	rec := &Record{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO subscription_records (store_id, trial_ends_at, subscription_expiry, is_blocked, is_banned, payment_status)
		VALUES ($1, $2, $2, FALSE, FALSE, 'unpaid')
		RETURNING store_id, trial_ends_at, subscription_expiry, is_blocked, is_banned, payment_status, created_at, updated_at
	`, storeID, trialEndsAt).StructScan(rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
