package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/chatrelay/relay/internal/metrics"
)

// Limiter is the admission-control facade for the send path. It combines
// the per-second throttle and the rolling daily quota over a shared
// WindowStore, so any number of server processes can enforce the same
// limits against one Redis.
type Limiter struct {
	store WindowStore
	tiers TierResolver
	now   func() time.Time
}

func NewLimiter(store WindowStore, tiers TierResolver) *Limiter {
	return &Limiter{
		store: store,
		tiers: tiers,
		now:   time.Now,
	}
}

// Admit decides whether one send for the organization may proceed right now.
// Ordering is strict: tier resolution, per-second check, then the daily
// check combined with the accepted-send write. Nothing is recorded unless
// the send is admitted; a rejection carries the retry hint.
//
// The per-second check is read-then-decide and tolerates sub-second slop
// between racing processes. The daily cap does not: the write is an atomic
// purge+add+count round, and a writer that lands over the cap removes its
// own entry before rejecting, so accepted sends never exceed the cap.
func (l *Limiter) Admit(ctx context.Context, organizationID string) Verdict {
	start := time.Now()
	verdict := l.admit(ctx, organizationID)
	metrics.AdmissionLatency.Observe(time.Since(start).Seconds())

	if verdict.Allowed {
		metrics.AdmissionsTotal.WithLabelValues("allowed").Inc()
	} else {
		metrics.AdmissionsTotal.WithLabelValues(string(verdict.Kind)).Inc()
	}

	return verdict
}

func (l *Limiter) admit(ctx context.Context, organizationID string) Verdict {
	now := l.now()
	tier := l.tiers.ResolveTier(ctx, organizationID)

	if verdict, ok := l.checkPerSecond(ctx, organizationID, tier, now); !ok {
		return verdict
	}

	cutoff := now.Add(-dayWindow)

	count, err := l.store.RecordAndCount(ctx, organizationID, now, cutoff)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		log.Printf("Rate limit store failed recording send for organization %s: %v", organizationID, err)
		return rejectedStoreUnavailable(tier)
	}

	limit, capped := tier.DailyLimit()
	if !capped {
		return allowed(tier)
	}

	if count > int64(limit) {
		// Take our own entry back out; the attempt was never accepted.
		if err := l.store.Remove(ctx, organizationID, now); err != nil {
			log.Printf("Failed to remove over-limit entry for organization %s: %v", organizationID, err)
		}
		return rejectedDaily(tier, limit, l.windowResetIn(ctx, organizationID, cutoff, now))
	}

	verdict := allowed(tier)
	verdict.Limit = limit
	verdict.Remaining = limit - int(count)
	verdict.ResetIn = l.windowResetIn(ctx, organizationID, cutoff, now)

	if verdict.Remaining < 0 {
		// Should be unreachable given the cap check above. Reject rather
		// than hand out quota we cannot account for.
		log.Printf("Negative remaining quota (%d) for organization %s", verdict.Remaining, organizationID)
		if err := l.store.Remove(ctx, organizationID, now); err != nil {
			log.Printf("Failed to remove over-limit entry for organization %s: %v", organizationID, err)
		}
		return rejectedDaily(tier, limit, l.windowResetIn(ctx, organizationID, cutoff, now))
	}

	return verdict
}

// checkPerSecond reads the most recent accepted send and rejects when it is
// under a second old. It never writes; the timestamp is recorded only once
// the full admission decision succeeds.
func (l *Limiter) checkPerSecond(ctx context.Context, organizationID string, tier Tier, now time.Time) (Verdict, bool) {
	after := now.Add(-time.Second)

	count, err := l.store.CountSince(ctx, organizationID, after, now)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		log.Printf("Rate limit store failed per-second check for organization %s: %v", organizationID, err)
		return rejectedStoreUnavailable(tier), false
	}

	if count < PerSecondLimit {
		return Verdict{}, true
	}

	retryAfter := time.Second
	if oldest, ok, err := l.store.OldestSince(ctx, organizationID, after, now); err == nil && ok {
		retryAfter = oldest.Add(time.Second).Sub(now)
	}

	return rejectedPerSecond(tier, retryAfter), false
}

// windowResetIn reports how long until the oldest entry in the current
// window ages out. Zero when the window is empty or the store read fails.
func (l *Limiter) windowResetIn(ctx context.Context, organizationID string, cutoff, now time.Time) time.Duration {
	oldest, ok, err := l.store.OldestSince(ctx, organizationID, cutoff, now)
	if err != nil || !ok {
		return 0
	}

	resetIn := oldest.Add(dayWindow).Sub(now)
	if resetIn < 0 {
		resetIn = 0
	}
	return resetIn
}

// Status is the read-only consumption snapshot behind GET /messages/limits.
type Status struct {
	Tier                   Tier   `json:"tier"`
	PerSecond              int    `json:"per_second"`
	PerDay                 *int   `json:"per_day"`
	MessagesSentToday      int64  `json:"messages_sent_today"`
	MessagesRemainingToday *int64 `json:"messages_remaining_today"`
	ResetInSeconds         *int64 `json:"reset_in_seconds,omitempty"`
	Degraded               bool   `json:"degraded,omitempty"`
}

// Status reports current consumption without mutating any window state.
// Unlike the send path this fails open: on a store failure it returns a
// zeroed snapshot flagged degraded instead of an error.
func (l *Limiter) Status(ctx context.Context, organizationID string) Status {
	now := l.now()
	tier := l.tiers.ResolveTier(ctx, organizationID)
	cutoff := now.Add(-dayWindow)

	status := Status{
		Tier:      tier,
		PerSecond: PerSecondLimit,
	}

	limit, capped := tier.DailyLimit()
	if capped {
		status.PerDay = &limit
	}

	count, err := l.store.CountSince(ctx, organizationID, cutoff, now)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		log.Printf("Rate limit store failed status read for organization %s: %v", organizationID, err)
		status.Degraded = true
		if capped {
			remaining := int64(limit)
			status.MessagesRemainingToday = &remaining
		}
		return status
	}

	status.MessagesSentToday = count

	if capped {
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		status.MessagesRemainingToday = &remaining
	}

	if count > 0 {
		if resetIn := l.windowResetIn(ctx, organizationID, cutoff, now); resetIn > 0 {
			seconds := int64(resetIn.Seconds())
			status.ResetInSeconds = &seconds
		}
	}

	return status
}

// Reset drops all window state for an organization. Administrative use only.
func (l *Limiter) Reset(ctx context.Context, organizationID string) error {
	return l.store.Clear(ctx, organizationID)
}
