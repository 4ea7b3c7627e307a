package sync

import (
	"context"
	"time"
)

// QueueStore is the server-side view of the offline queue. The reconciler
// depends only on this interface, not on any particular storage medium.
type QueueStore interface {
	Append(ctx context.Context, e *Entry) (*Entry, error)
	GetByLocalID(ctx context.Context, localID string) (*Entry, error)
	ListPending(ctx context.Context, storeID string, branchID *string, limit int) ([]Entry, error)
	MarkSynced(ctx context.Context, localID string, saleID int64, at time.Time) error
	RecordFailure(ctx context.Context, localID, message string, at time.Time) error
	MarkFailed(ctx context.Context, localID, message string, at time.Time) error
	Remove(ctx context.Context, localID string) error
}
