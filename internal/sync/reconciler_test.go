package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tillpoint/internal/clock"
	"tillpoint/internal/logger"
	"tillpoint/internal/product"
	"tillpoint/internal/sale"
	"tillpoint/internal/user"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init()
}

// In-memory queue. Reconciliation is stateful (retry accounting, status
// transitions), so these tests use fakes that actually hold state instead of
// expectation mocks.
type fakeQueue struct {
	entries        map[string]*Entry
	order          []string
	failMarkSynced bool
	listErr        error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{entries: map[string]*Entry{}}
}

func (q *fakeQueue) add(e *Entry) {
	q.entries[e.LocalID] = e
	q.order = append(q.order, e.LocalID)
}

func (q *fakeQueue) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if existing, ok := q.entries[e.LocalID]; ok {
		return existing, nil
	}
	e.Status = StatusPending
	q.add(e)
	return e, nil
}

func (q *fakeQueue) GetByLocalID(ctx context.Context, localID string) (*Entry, error) {
	e, ok := q.entries[localID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

func (q *fakeQueue) ListPending(ctx context.Context, storeID string, branchID *string, limit int) ([]Entry, error) {
	if q.listErr != nil {
		return nil, q.listErr
	}
	var out []Entry
	for _, id := range q.order {
		e := q.entries[id]
		if e.StoreID == storeID && e.Status == StatusPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (q *fakeQueue) MarkSynced(ctx context.Context, localID string, saleID int64, at time.Time) error {
	if q.failMarkSynced {
		return errors.New("bookkeeping write failed")
	}
	e, ok := q.entries[localID]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = StatusSynced
	e.SyncedSaleID = &saleID
	e.LastSyncAttempt = &at
	return nil
}

func (q *fakeQueue) RecordFailure(ctx context.Context, localID, message string, at time.Time) error {
	e, ok := q.entries[localID]
	if !ok {
		return ErrEntryNotFound
	}
	e.SyncAttempts++
	e.ErrorMessage = &message
	e.LastSyncAttempt = &at
	return nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, localID, message string, at time.Time) error {
	e, ok := q.entries[localID]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = StatusFailed
	e.SyncAttempts++
	e.ErrorMessage = &message
	e.LastSyncAttempt = &at
	return nil
}

func (q *fakeQueue) Remove(ctx context.Context, localID string) error {
	if _, ok := q.entries[localID]; !ok {
		return ErrEntryNotFound
	}
	delete(q.entries, localID)
	return nil
}

// In-memory sale ledger with the local-id unique index.
type fakeSaleRepo struct {
	nextID     int64
	byLocal    map[string]*sale.Sale
	all        []*sale.Sale
	failLocal  map[string]error
	blockLocal map[string]bool
}

func newFakeSaleRepo() *fakeSaleRepo {
	return &fakeSaleRepo{
		byLocal:    map[string]*sale.Sale{},
		failLocal:  map[string]error{},
		blockLocal: map[string]bool{},
	}
}

func (r *fakeSaleRepo) Create(ctx context.Context, s *sale.Sale) (*sale.Sale, error) {
	if s.LocalID != nil {
		if err := r.failLocal[*s.LocalID]; err != nil {
			return nil, err
		}
		if r.blockLocal[*s.LocalID] {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	r.nextID++
	created := *s
	created.ID = r.nextID
	r.all = append(r.all, &created)
	if s.LocalID != nil {
		r.byLocal[*s.LocalID] = &created
	}
	return &created, nil
}

func (r *fakeSaleRepo) GetByLocalID(ctx context.Context, localID string) (*sale.Sale, error) {
	s, ok := r.byLocal[localID]
	if !ok {
		return nil, sale.ErrSaleNotFound
	}
	return s, nil
}

func (r *fakeSaleRepo) GetByID(ctx context.Context, id int64) (*sale.Sale, error) {
	for _, s := range r.all {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, sale.ErrSaleNotFound
}

func (r *fakeSaleRepo) UpdateStatus(ctx context.Context, id int64, status sale.Status) error {
	return nil
}

func (r *fakeSaleRepo) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]sale.Sale, error) {
	return nil, nil
}

// In-memory stock counters.
type fakeAdjuster struct {
	stock      map[int]int
	decrements int
}

func (a *fakeAdjuster) DecrementStock(ctx context.Context, productID, quantity int) error {
	current, ok := a.stock[productID]
	if !ok {
		return product.ErrProductNotFound
	}
	if current < quantity {
		return product.ErrInsufficientStock
	}
	a.stock[productID] = current - quantity
	a.decrements++
	return nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func queuedEntry(localID string, items ...sale.PayloadItem) *Entry {
	payload := sale.Payload{Items: items, TotalCents: 1000, PaymentMethod: "cash"}
	data, _ := json.Marshal(payload)
	return &Entry{
		LocalID:  localID,
		DeviceID: "dev1",
		StoreID:  "store123",
		SaleData: types.JSONText(data),
		Status:   StatusPending,
	}
}

func newTestReconciler(q *fakeQueue, repo *fakeSaleRepo, inv *fakeAdjuster, cfg ReconcilerConfig) *Reconciler {
	return NewReconciler(q, sale.NewService(repo, inv), clock.Fixed(testNow), nil, nil, cfg)
}

// Records every alert instead of sending mail.
type fakeAlerter struct {
	alerts []string
}

func (a *fakeAlerter) SendSyncFailureAlert(ctx context.Context, email, name, storeID, localID, reason string) error {
	a.alerts = append(a.alerts, localID+": "+reason)
	return nil
}

type fakeStaff struct {
	admin *user.User
}

func (s *fakeStaff) FindStoreAdmin(ctx context.Context, storeID string) (*user.User, error) {
	if s.admin == nil {
		return nil, user.ErrUserNotFound
	}
	return s.admin, nil
}

// Two entries with distinct local ids selling the same product: both sync,
// the shared stock counter ends at 5-2-2=1 and two distinct sales exist.
func TestReconcileTwoEntriesSameProduct(t *testing.T) {
	q := newFakeQueue()
	q.add(queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 2, UnitPriceCents: 500}))
	q.add(queuedEntry("dev2-1", sale.PayloadItem{ProductID: 1, Quantity: 2, UnitPriceCents: 500}))

	repo := newFakeSaleRepo()
	inv := &fakeAdjuster{stock: map[int]int{1: 5}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.True(t, res.Success, "entry %s", res.LocalID)
		assert.NotNil(t, res.SaleID)
	}
	assert.Equal(t, 1, inv.stock[1])
	assert.Len(t, repo.all, 2)
	assert.Equal(t, StatusSynced, q.entries["dev1-1"].Status)
	assert.Equal(t, StatusSynced, q.entries["dev2-1"].Status)
}

// A crash after creating the sale but before the entry bookkeeping leaves the
// entry pending. The re-run finds the sale by local id and finishes without a
// second ledger entry or a second decrement.
func TestReconcileRerunAfterPartialCrash(t *testing.T) {
	q := newFakeQueue()
	q.add(queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 2, UnitPriceCents: 500}))

	repo := newFakeSaleRepo()
	inv := &fakeAdjuster{stock: map[int]int{1: 5}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	q.failMarkSynced = true
	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, StatusPending, q.entries["dev1-1"].Status, "bookkeeping failed, entry stays pending")

	q.failMarkSynced = false
	results, err = r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	assert.Len(t, repo.all, 1, "exactly one canonical sale per local id")
	assert.Equal(t, 1, inv.decrements, "exactly one decrement per line item")
	assert.Equal(t, 3, inv.stock[1])
	assert.Equal(t, StatusSynced, q.entries["dev1-1"].Status)
}

// Entry 2 of 3 fails; 1 and 3 still sync.
func TestReconcileBatchIsolation(t *testing.T) {
	q := newFakeQueue()
	q.add(queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500}))
	q.add(queuedEntry("dev1-2", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500}))
	q.add(queuedEntry("dev1-3", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500}))

	repo := newFakeSaleRepo()
	repo.failLocal["dev1-2"] = errors.New("ledger write rejected")
	inv := &fakeAdjuster{stock: map[int]int{1: 10}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byLocal := map[string]ItemResult{}
	for _, res := range results {
		byLocal[res.LocalID] = res
	}
	assert.True(t, byLocal["dev1-1"].Success)
	assert.False(t, byLocal["dev1-2"].Success)
	assert.Contains(t, byLocal["dev1-2"].Error, "ledger write rejected")
	assert.True(t, byLocal["dev1-3"].Success)

	assert.Equal(t, StatusSynced, q.entries["dev1-1"].Status)
	assert.Equal(t, StatusPending, q.entries["dev1-2"].Status, "failed entry stays eligible for retry")
	assert.Equal(t, 1, q.entries["dev1-2"].SyncAttempts)
	assert.Equal(t, testNow, *q.entries["dev1-2"].LastSyncAttempt)
	assert.Equal(t, StatusSynced, q.entries["dev1-3"].Status)
}

func TestReconcileRetryCeiling(t *testing.T) {
	q := newFakeQueue()
	e := queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500})
	e.SyncAttempts = 2
	q.add(e)

	repo := newFakeSaleRepo()
	repo.failLocal["dev1-1"] = errors.New("still broken")
	inv := &fakeAdjuster{stock: map[int]int{1: 10}}
	alerter := &fakeAlerter{}
	staff := &fakeStaff{admin: &user.User{Name: "Store Owner", Email: "owner@example.com", Role: "admin", StoreID: "store123"}}
	r := NewReconciler(q, sale.NewService(repo, inv), clock.Fixed(testNow), alerter, staff, ReconcilerConfig{MaxAttempts: 3})

	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, StatusFailed, q.entries["dev1-1"].Status, "ceiling reached, terminal state")
	assert.Equal(t, 3, q.entries["dev1-1"].SyncAttempts)

	// Terminal failure reaches the store admin.
	require.Len(t, alerter.alerts, 1)
	assert.Contains(t, alerter.alerts[0], "dev1-1")
	assert.Contains(t, alerter.alerts[0], "still broken")
}

// Failures below the ceiling stay retryable and never page anyone.
func TestReconcileRetryableFailureDoesNotAlert(t *testing.T) {
	q := newFakeQueue()
	q.add(queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500}))

	repo := newFakeSaleRepo()
	repo.failLocal["dev1-1"] = errors.New("transient")
	inv := &fakeAdjuster{stock: map[int]int{1: 10}}
	alerter := &fakeAlerter{}
	staff := &fakeStaff{admin: &user.User{Name: "Store Owner", Email: "owner@example.com", Role: "admin", StoreID: "store123"}}
	r := NewReconciler(q, sale.NewService(repo, inv), clock.Fixed(testNow), alerter, staff, ReconcilerConfig{MaxAttempts: 3})

	_, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, q.entries["dev1-1"].Status)
	assert.Empty(t, alerter.alerts)
}

func TestReconcileNoCeilingKeepsRetrying(t *testing.T) {
	q := newFakeQueue()
	e := queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500})
	e.SyncAttempts = 99
	q.add(e)

	repo := newFakeSaleRepo()
	repo.failLocal["dev1-1"] = errors.New("still broken")
	inv := &fakeAdjuster{stock: map[int]int{1: 10}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	_, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, q.entries["dev1-1"].Status)
	assert.Equal(t, 100, q.entries["dev1-1"].SyncAttempts)
}

// A timed-out attempt is an ordinary failure: attempts bumped, entry pending.
func TestReconcileEntryTimeout(t *testing.T) {
	q := newFakeQueue()
	q.add(queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500}))

	repo := newFakeSaleRepo()
	repo.blockLocal["dev1-1"] = true
	inv := &fakeAdjuster{stock: map[int]int{1: 10}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{EntryTimeout: 30 * time.Millisecond})

	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, StatusPending, q.entries["dev1-1"].Status)
	assert.Equal(t, 1, q.entries["dev1-1"].SyncAttempts)
}

func TestReconcileMalformedEntryIsTerminal(t *testing.T) {
	q := newFakeQueue()
	q.add(&Entry{
		LocalID:  "dev1-bad",
		DeviceID: "dev1",
		StoreID:  "store123",
		SaleData: types.JSONText(`{not json`),
		Status:   StatusPending,
	})

	repo := newFakeSaleRepo()
	inv := &fakeAdjuster{stock: map[int]int{}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, StatusFailed, q.entries["dev1-bad"].Status)
	assert.Empty(t, repo.all)
}

// Insufficient stock is a warning on a successful entry: the ledger is
// strict, inventory is best-effort.
func TestReconcileInventoryShortfallStillSyncs(t *testing.T) {
	q := newFakeQueue()
	q.add(queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 8, UnitPriceCents: 500}))

	repo := newFakeSaleRepo()
	inv := &fakeAdjuster{stock: map[int]int{1: 3}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	require.Len(t, results[0].Warnings, 1)
	assert.Contains(t, results[0].Warnings[0], "insufficient stock")
	assert.Equal(t, StatusSynced, q.entries["dev1-1"].Status)
	assert.Equal(t, 3, inv.stock[1], "failed decrement leaves stock untouched")
}

func TestReconcileBranchFilter(t *testing.T) {
	branchA := "branch-a"
	q := newFakeQueue()
	e1 := queuedEntry("dev1-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500})
	e1.BranchID = &branchA
	q.add(e1)
	e2 := queuedEntry("dev2-1", sale.PayloadItem{ProductID: 1, Quantity: 1, UnitPriceCents: 500})
	branchB := "branch-b"
	e2.BranchID = &branchB
	q.add(e2)

	repo := newFakeSaleRepo()
	inv := &fakeAdjuster{stock: map[int]int{1: 10}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	// The fake lists by store only; filter behaviour itself is covered by
	// the repository tests. Reconcile over the whole store drains both.
	results, err := r.Reconcile(context.Background(), "store123", nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestReconcileListFailurePropagates(t *testing.T) {
	q := newFakeQueue()
	q.listErr = errors.New("queue unavailable")

	repo := newFakeSaleRepo()
	inv := &fakeAdjuster{stock: map[int]int{}}
	r := newTestReconciler(q, repo, inv, ReconcilerConfig{})

	_, err := r.Reconcile(context.Background(), "store123", nil)
	require.ErrorIs(t, err, q.listErr)
}
