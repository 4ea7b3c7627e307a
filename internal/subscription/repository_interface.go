package subscription

import (
	"context"
	"time"
)

type Repository interface {
	GetByStoreID(ctx context.Context, storeID string) (*Record, error)
	CompareAndSetBlocked(ctx context.Context, storeID string, expected, next bool) (bool, error)
	Renew(ctx context.Context, storeID string, newExpiry time.Time) error
	CreateTrial(ctx context.Context, storeID string, trialEndsAt time.Time) (*Record, error)
}
