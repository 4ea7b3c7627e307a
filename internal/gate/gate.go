package gate

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"tillpoint/internal/clock"
	"tillpoint/internal/logger"
	"tillpoint/internal/metrics"
	"tillpoint/internal/subscription"
	"tillpoint/internal/user"
)

// Notifier tells store staff about grace and block transitions. Satisfied by
// notify.Service, which dedups the grace warning per store.
type Notifier interface {
	SendBlockedNotice(ctx context.Context, email, name, storeID string) error
	SendGraceWarningOnce(ctx context.Context, email, name, storeID string, daysRemaining int) error
}

// StaffDirectory resolves the store account that block notices go to.
type StaffDirectory interface {
	FindStoreAdmin(ctx context.Context, storeID string) (*user.User, error)
}

// The blocked-result shape and the redirect path template are a stable wire
// contract consumed by existing dashboard clients. Do not change either.
const (
	BlockedErrorCode    = "SUBSCRIPTION_EXPIRED"
	billingPathTemplate = "/dashboard/%s/billing"

	genericBlockedMessage = "Subscription status could not be verified. Please contact support or renew your subscription."
)

var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidStoreID reports whether id is a well-formed store identifier.
// Malformed ids are rejected before any storage access.
func ValidStoreID(id string) bool {
	return storeIDPattern.MatchString(id)
}

type BlockedResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RedirectTo string `json:"redirectTo"`
}

func NewBlockedResponse(storeID, message string) *BlockedResponse {
	return &BlockedResponse{
		Success:    false,
		Error:      BlockedErrorCode,
		Message:    message,
		RedirectTo: fmt.Sprintf(billingPathTemplate, storeID),
	}
}

// Decision is the outcome of a gate check. Exactly one of Allowed or Blocked
// holds: a blocked store carries the typed rejection, an allowed one carries
// the resolved status for the caller to surface (e.g. grace warnings).
type Decision struct {
	Allowed bool
	Status  subscription.Status
	Blocked *BlockedResponse
}

// Checker enforces subscription gating for store-scoped operations. It is the
// only component that writes the auto-block transition.
type Checker struct {
	records  subscription.Repository
	clock    clock.Clock
	notifier Notifier
	staff    StaffDirectory
}

// NewChecker builds the gate. notifier and staff may be nil, in which case
// auto-blocks are only logged.
func NewChecker(records subscription.Repository, clk clock.Clock, notifier Notifier, staff StaffDirectory) *Checker {
	return &Checker{records: records, clock: clk, notifier: notifier, staff: staff}
}

// Check loads and resolves the store's subscription state and persists the
// auto-block transition when the grace period has elapsed.
//
// Fail-closed rules: a malformed store id or a missing record is Blocked with
// a nil error. A storage failure is also Blocked, but the error is returned
// alongside so callers can report infrastructure trouble distinctly from an
// expired subscription.
func (g *Checker) Check(ctx context.Context, storeID string) (Decision, error) {
	if !ValidStoreID(storeID) {
		metrics.RecordGateCheck("invalid_store_id")
		return blockedDecision(storeID, genericBlockedMessage), nil
	}

	rec, err := g.records.GetByStoreID(ctx, storeID)
	if err != nil {
		if errors.Is(err, subscription.ErrRecordNotFound) {
			metrics.RecordGateCheck("no_record")
			return blockedDecision(storeID, genericBlockedMessage), nil
		}
		metrics.RecordGateCheck("storage_error")
		return blockedDecision(storeID, genericBlockedMessage), fmt.Errorf("load subscription record for store %s: %w", storeID, err)
	}

	st := subscription.Resolve(rec, g.clock.Now())

	if st.ShouldBlock && !rec.IsBlocked {
		// At-least-once side effect. A false return means a concurrent
		// caller (or a renewal) won the compare-and-set, either way the
		// stored state is settled and this decision stands on the resolved
		// status alone.
		changed, casErr := g.records.CompareAndSetBlocked(ctx, storeID, false, true)
		if casErr != nil {
			logger.Errorf("Failed to persist auto-block for store %s: %v", storeID, casErr)
		} else if changed {
			logger.Infof("Store auto-blocked: Store=%s", storeID)
			metrics.RecordAutoBlock()
			// Winning the compare-and-set makes this caller the single block
			// event, so the notice goes out at most once per transition.
			g.notifyBlocked(ctx, storeID)
		}
	}

	if st.IsBlocked {
		metrics.RecordGateCheck("blocked")
		return Decision{Status: st, Blocked: NewBlockedResponse(storeID, st.Message)}, nil
	}

	if st.IsExpired && st.GracePeriodDays > 0 {
		g.notifyGrace(ctx, storeID, st.GracePeriodDays)
	}

	metrics.RecordGateCheck("allowed")
	return Decision{Allowed: true, Status: st}, nil
}

func (g *Checker) notifyGrace(ctx context.Context, storeID string, daysRemaining int) {
	if g.notifier == nil || g.staff == nil {
		return
	}
	admin, _ := g.staff.FindStoreAdmin(ctx, storeID)
	if admin == nil {
		return
	}
	if err := g.notifier.SendGraceWarningOnce(ctx, admin.Email, admin.Name, storeID, daysRemaining); err != nil {
		logger.Errorf("Failed to queue grace warning for store %s: %v", storeID, err)
	}
}

func (g *Checker) notifyBlocked(ctx context.Context, storeID string) {
	if g.notifier == nil || g.staff == nil {
		return
	}
	admin, _ := g.staff.FindStoreAdmin(ctx, storeID)
	if admin == nil {
		return
	}
	if err := g.notifier.SendBlockedNotice(ctx, admin.Email, admin.Name, storeID); err != nil {
		logger.Errorf("Failed to queue blocked notice for store %s: %v", storeID, err)
	}
}

func blockedDecision(storeID, message string) Decision {
	return Decision{
		Status:  subscription.FallbackStatus(),
		Blocked: NewBlockedResponse(storeID, message),
	}
}

// Result wraps the outcome of a gated operation.
type Result[T any] struct {
	Allowed bool
	Value   T
	Blocked *BlockedResponse
}

// Run composes the gate around an arbitrary store-scoped operation. The
// operation is only invoked on an allowed decision; its errors propagate
// unchanged. A blocked store yields a typed result, never an error.
func Run[T any](ctx context.Context, g *Checker, storeID string, op func(context.Context) (T, error)) (Result[T], error) {
	decision, err := g.Check(ctx, storeID)
	if err != nil {
		return Result[T]{Blocked: decision.Blocked}, err
	}
	if !decision.Allowed {
		return Result[T]{Blocked: decision.Blocked}, nil
	}

	value, err := op(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Allowed: true, Value: value}, nil
}
