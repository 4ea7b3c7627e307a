package sync

import (
	"context"
	"time"

	"tillpoint/internal/clock"
	"tillpoint/internal/logger"
	"tillpoint/internal/metrics"
	"tillpoint/internal/sale"
	"tillpoint/internal/user"
)

// FailureAlerter notifies store staff when an entry is dropped for good.
// Satisfied by notify.Service.
type FailureAlerter interface {
	SendSyncFailureAlert(ctx context.Context, email, name, storeID, localID, reason string) error
}

// StaffDirectory resolves the store account that sync alerts go to.
type StaffDirectory interface {
	FindStoreAdmin(ctx context.Context, storeID string) (*user.User, error)
}

type ReconcilerConfig struct {
	// EntryTimeout bounds each entry's sale-creation attempt. A timed-out
	// attempt counts as an ordinary failure.
	EntryTimeout time.Duration
	// MaxAttempts of 0 disables the terminal failed transition.
	MaxAttempts int
	BatchLimit  int
}

// Reconciler drains a store's pending offline sale entries against the
// shared server state. Entries are independent: one failure never blocks or
// corrupts the rest of the batch.
type Reconciler struct {
	queue   QueueStore
	sales   sale.Service
	clock   clock.Clock
	alerter FailureAlerter
	staff   StaffDirectory
	cfg     ReconcilerConfig
}

// NewReconciler builds the sync reconciler. alerter and staff may be nil, in
// which case terminal failures are only logged.
func NewReconciler(queue QueueStore, sales sale.Service, clk clock.Clock, alerter FailureAlerter, staff StaffDirectory, cfg ReconcilerConfig) *Reconciler {
	if cfg.EntryTimeout <= 0 {
		cfg.EntryTimeout = 10 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	return &Reconciler{queue: queue, sales: sales, clock: clk, alerter: alerter, staff: staff, cfg: cfg}
}

// Reconcile processes the pending batch for (storeID, branchID) sequentially
// so concurrent decrements against the same product stay bounded. The error
// return covers only the initial batch load; per-entry outcomes are reported
// in the results.
func (r *Reconciler) Reconcile(ctx context.Context, storeID string, branchID *string) ([]ItemResult, error) {
	entries, err := r.queue.ListPending(ctx, storeID, branchID, r.cfg.BatchLimit)
	if err != nil {
		return nil, err
	}

	results := make([]ItemResult, 0, len(entries))
	for i := range entries {
		results = append(results, r.reconcileEntry(ctx, &entries[i]))
	}

	logger.Infof("Sync batch done: Store=%s, Entries=%d", storeID, len(entries))
	return results, nil
}

func (r *Reconciler) reconcileEntry(ctx context.Context, e *Entry) ItemResult {
	now := r.clock.Now()

	payload, err := e.Payload()
	if err != nil {
		// Malformed sale data can never succeed; no point retrying.
		r.recordFailure(ctx, e, "malformed sale data: "+err.Error(), now, true)
		metrics.RecordSyncEntry("malformed")
		return ItemResult{LocalID: e.LocalID, Error: "malformed sale data"}
	}

	entryCtx, cancel := context.WithTimeout(ctx, r.cfg.EntryTimeout)
	defer cancel()

	created, err := r.sales.Create(entryCtx, e.StoreID, e.BranchID, nil, &e.LocalID, payload)
	if err != nil {
		terminal := r.cfg.MaxAttempts > 0 && e.SyncAttempts+1 >= r.cfg.MaxAttempts
		r.recordFailure(ctx, e, err.Error(), now, terminal)
		metrics.RecordSyncEntry("failed")
		return ItemResult{LocalID: e.LocalID, Error: err.Error()}
	}

	saleID := created.Sale.ID
	if err := r.queue.MarkSynced(ctx, e.LocalID, saleID, now); err != nil {
		// The canonical sale exists; the entry stays pending and the next
		// run will hit the idempotency check and finish the bookkeeping.
		logger.Errorf("Failed to mark entry %s synced: %v", e.LocalID, err)
	}

	if created.Reused {
		metrics.RecordSyncEntry("reused")
	} else {
		metrics.RecordSyncEntry("synced")
		metrics.RecordSale("offline")
	}

	return ItemResult{
		LocalID:  e.LocalID,
		Success:  true,
		SaleID:   &saleID,
		Warnings: created.InventoryWarnings,
	}
}

func (r *Reconciler) recordFailure(ctx context.Context, e *Entry, message string, now time.Time, terminal bool) {
	var err error
	if terminal {
		err = r.queue.MarkFailed(ctx, e.LocalID, message, now)
	} else {
		err = r.queue.RecordFailure(ctx, e.LocalID, message, now)
	}
	if err != nil {
		logger.Errorf("Failed to record sync failure for entry %s: %v", e.LocalID, err)
	}

	if terminal {
		r.alertFailure(ctx, e, message)
	}
}

// alertFailure emails the store admin about an entry that will never sync.
// Best effort: the entry is already marked failed either way.
func (r *Reconciler) alertFailure(ctx context.Context, e *Entry, reason string) {
	if r.alerter == nil || r.staff == nil {
		return
	}
	admin, _ := r.staff.FindStoreAdmin(ctx, e.StoreID)
	if admin == nil {
		return
	}
	if err := r.alerter.SendSyncFailureAlert(ctx, admin.Email, admin.Name, e.StoreID, e.LocalID, reason); err != nil {
		logger.Errorf("Failed to queue sync failure alert for entry %s: %v", e.LocalID, err)
	}
}
