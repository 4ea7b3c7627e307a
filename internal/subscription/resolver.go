package subscription

import (
	"fmt"
	"time"
)

// GracePeriodDays is the window after expiry during which a store keeps
// access but sees a renewal warning.
const GracePeriodDays = 7

const (
	blockedMessage       = "Subscription expired. Please renew to continue."
	statusCheckFailedMsg = "Error checking subscription status"
)

// Resolve computes the status of a record at the given instant. It is pure:
// no I/O, no caching, safe to call any number of times.
func Resolve(rec *Record, now time.Time) Status {
	if rec.IsBlocked || rec.IsBanned {
		return Status{
			IsActive:  false,
			IsExpired: true,
			IsBlocked: true,
			Message:   blockedMessage,
		}
	}

	effectiveExpiry := rec.SubscriptionExpiry
	if rec.TrialEndsAt.After(effectiveExpiry) {
		effectiveExpiry = rec.TrialEndsAt
	}
	gracePeriodEnd := effectiveExpiry.AddDate(0, 0, GracePeriodDays)

	isExpired := now.After(effectiveExpiry)
	inGrace := isExpired && !now.After(gracePeriodEnd)
	shouldBlock := now.After(gracePeriodEnd)

	st := Status{
		IsActive:      !isExpired || inGrace,
		IsExpired:     isExpired,
		IsBlocked:     shouldBlock,
		ShouldBlock:   shouldBlock,
		DaysRemaining: ceilDays(effectiveExpiry.Sub(now)),
	}

	switch {
	case shouldBlock:
		st.Message = blockedMessage
	case inGrace:
		st.GracePeriodDays = ceilDays(gracePeriodEnd.Sub(now))
		st.Message = fmt.Sprintf("Subscription expired. %d day(s) of grace period remaining.", st.GracePeriodDays)
	}

	return st
}

// FallbackStatus is the documented fail-closed body returned when the
// subscription state cannot be determined at all.
func FallbackStatus() Status {
	return Status{
		IsActive:  false,
		IsExpired: true,
		IsBlocked: true,
		Message:   statusCheckFailedMsg,
	}
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
