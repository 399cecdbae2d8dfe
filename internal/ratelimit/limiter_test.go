package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process WindowStore with the same range semantics as
// the Redis implementation (exclusive after, inclusive until).
type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]time.Time)}
}

func (s *memoryStore) RecordAndCount(_ context.Context, tenant string, ts, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	kept := s.entries[tenant][:0]
	for _, entry := range s.entries[tenant] {
		if entry.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	kept = append(kept, ts)
	s.entries[tenant] = kept

	return int64(len(kept)), nil
}

func (s *memoryStore) Remove(_ context.Context, tenant string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	kept := s.entries[tenant][:0]
	for _, entry := range s.entries[tenant] {
		if !entry.Equal(ts) {
			kept = append(kept, entry)
		}
	}
	s.entries[tenant] = kept
	return nil
}

func (s *memoryStore) CountSince(_ context.Context, tenant string, after, until time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	var count int64
	for _, entry := range s.entries[tenant] {
		if entry.After(after) && !entry.After(until) {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) OldestSince(_ context.Context, tenant string, after, until time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return time.Time{}, false, s.err
	}

	var oldest time.Time
	found := false
	for _, entry := range s.entries[tenant] {
		if entry.After(after) && !entry.After(until) {
			if !found || entry.Before(oldest) {
				oldest = entry
				found = true
			}
		}
	}
	return oldest, found, nil
}

func (s *memoryStore) PurgeBefore(_ context.Context, tenant string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	kept := s.entries[tenant][:0]
	for _, entry := range s.entries[tenant] {
		if entry.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	s.entries[tenant] = kept
	return nil
}

func (s *memoryStore) Clear(_ context.Context, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	delete(s.entries, tenant)
	return nil
}

func (s *memoryStore) count(tenant string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[tenant])
}

type staticTiers map[string]Tier

func (t staticTiers) ResolveTier(_ context.Context, organizationID string) Tier {
	if tier, ok := t[organizationID]; ok {
		return tier
	}
	return TierFree
}

func newTestLimiter(store WindowStore, tiers TierResolver, start time.Time) (*Limiter, *time.Time) {
	now := start
	limiter := NewLimiter(store, tiers)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestAdmitFirstSend(t *testing.T) {
	store := newMemoryStore()
	limiter, _ := newTestLimiter(store, staticTiers{"org1": TierFree}, time.Unix(1700000000, 0))

	verdict := limiter.Admit(context.Background(), "org1")

	require.True(t, verdict.Allowed)
	assert.Equal(t, FreeDailyLimit, verdict.Limit)
	assert.Equal(t, 99, verdict.Remaining)
	assert.Equal(t, 1, store.count("org1"))

	headers := verdict.Headers()
	assert.Equal(t, "100", headers["X-RateLimit-Limit"])
	assert.Equal(t, "99", headers["X-RateLimit-Remaining"])
}

func TestPerSecondThrottle(t *testing.T) {
	store := newMemoryStore()
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierFree}, time.Unix(1700000000, 0))

	require.True(t, limiter.Admit(context.Background(), "org1").Allowed)

	*now = now.Add(100 * time.Millisecond)
	verdict := limiter.Admit(context.Background(), "org1")

	require.False(t, verdict.Allowed)
	assert.Equal(t, RejectionPerSecond, verdict.Kind)
	assert.InDelta(t, 0.9, verdict.RetryAfter.Seconds(), 0.001)

	body := verdict.RejectionBody()
	require.NotNil(t, body)
	assert.Equal(t, "per_second_limit", body.Type)
	assert.InDelta(t, 0.9, body.RetryAfter, 0.001)

	// Rejection must not record anything.
	assert.Equal(t, 1, store.count("org1"))
}

func TestPerSecondBoundary(t *testing.T) {
	store := newMemoryStore()
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierFree}, time.Unix(1700000000, 0))

	require.True(t, limiter.Admit(context.Background(), "org1").Allowed)

	// Exactly one second of spacing is allowed.
	*now = now.Add(time.Second)
	assert.True(t, limiter.Admit(context.Background(), "org1").Allowed)
}

func TestPerSecondAppliesToPaidTiers(t *testing.T) {
	store := newMemoryStore()
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierPro}, time.Unix(1700000000, 0))

	require.True(t, limiter.Admit(context.Background(), "org1").Allowed)

	*now = now.Add(200 * time.Millisecond)
	verdict := limiter.Admit(context.Background(), "org1")

	require.False(t, verdict.Allowed)
	assert.Equal(t, RejectionPerSecond, verdict.Kind)
}

func TestDailyCap(t *testing.T) {
	store := newMemoryStore()
	start := time.Unix(1700000000, 0)
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierFree}, start)

	for i := 0; i < FreeDailyLimit; i++ {
		verdict := limiter.Admit(context.Background(), "org1")
		require.True(t, verdict.Allowed, "send %d should be allowed", i+1)
		assert.Equal(t, FreeDailyLimit-i-1, verdict.Remaining)
		*now = now.Add(time.Second)
	}

	verdict := limiter.Admit(context.Background(), "org1")

	require.False(t, verdict.Allowed)
	assert.Equal(t, RejectionDaily, verdict.Kind)

	// Retry hint points at when the oldest entry ages out of the window.
	wantRetry := start.Add(dayWindow).Sub(*now)
	assert.Equal(t, wantRetry, verdict.RetryAfter)

	body := verdict.RejectionBody()
	require.NotNil(t, body)
	assert.Equal(t, "daily_limit", body.Type)
	assert.NotEmpty(t, body.UpgradeLink)

	// The rejected attempt must not count against the window.
	assert.Equal(t, FreeDailyLimit, store.count("org1"))
}

func TestDailyWindowSlides(t *testing.T) {
	store := newMemoryStore()
	start := time.Unix(1700000000, 0)
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierFree}, start)

	for i := 0; i < FreeDailyLimit; i++ {
		require.True(t, limiter.Admit(context.Background(), "org1").Allowed)
		*now = now.Add(time.Second)
	}
	require.False(t, limiter.Admit(context.Background(), "org1").Allowed)

	// Once the oldest entry falls out of the trailing 24h, a slot opens.
	*now = start.Add(dayWindow + time.Second)
	verdict := limiter.Admit(context.Background(), "org1")
	require.True(t, verdict.Allowed)

	// The record pass also purged the entries that aged out.
	assert.Equal(t, 99, store.count("org1"))
}

func TestPaidTierUncapped(t *testing.T) {
	store := newMemoryStore()
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierPro}, time.Unix(1700000000, 0))

	for i := 0; i < 500; i++ {
		verdict := limiter.Admit(context.Background(), "org1")
		require.True(t, verdict.Allowed, "send %d should be allowed", i+1)
		assert.Nil(t, verdict.Headers())
		*now = now.Add(1500 * time.Millisecond)
	}
}

func TestUnknownOrganizationGetsFreeTier(t *testing.T) {
	store := newMemoryStore()
	limiter, _ := newTestLimiter(store, staticTiers{}, time.Unix(1700000000, 0))

	verdict := limiter.Admit(context.Background(), "unknown-org")

	require.True(t, verdict.Allowed)
	assert.Equal(t, FreeDailyLimit, verdict.Limit)
}

func TestFailClosedOnStoreError(t *testing.T) {
	store := newMemoryStore()
	store.err = ErrStoreUnavailable
	limiter, _ := newTestLimiter(store, staticTiers{"org1": TierPro}, time.Unix(1700000000, 0))

	verdict := limiter.Admit(context.Background(), "org1")

	require.False(t, verdict.Allowed)
	assert.Equal(t, RejectionStoreUnavailable, verdict.Kind)

	body := verdict.RejectionBody()
	require.NotNil(t, body)
	assert.Equal(t, "store_unavailable", body.Type)
}

func TestStatusFreshTenant(t *testing.T) {
	store := newMemoryStore()
	limiter, _ := newTestLimiter(store, staticTiers{"free-org": TierFree, "pro-org": TierPro}, time.Unix(1700000000, 0))

	free := limiter.Status(context.Background(), "free-org")
	assert.Equal(t, TierFree, free.Tier)
	assert.Equal(t, 1, free.PerSecond)
	require.NotNil(t, free.PerDay)
	assert.Equal(t, 100, *free.PerDay)
	assert.Equal(t, int64(0), free.MessagesSentToday)
	require.NotNil(t, free.MessagesRemainingToday)
	assert.Equal(t, int64(100), *free.MessagesRemainingToday)
	assert.Nil(t, free.ResetInSeconds)

	pro := limiter.Status(context.Background(), "pro-org")
	assert.Equal(t, TierPro, pro.Tier)
	assert.Nil(t, pro.PerDay)
	assert.Nil(t, pro.MessagesRemainingToday)
}

func TestStatusDoesNotMutate(t *testing.T) {
	store := newMemoryStore()
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierFree}, time.Unix(1700000000, 0))

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Admit(context.Background(), "org1").Allowed)
		*now = now.Add(2 * time.Second)
	}

	first := limiter.Status(context.Background(), "org1")
	second := limiter.Status(context.Background(), "org1")

	assert.Equal(t, first, second)
	assert.Equal(t, int64(3), first.MessagesSentToday)
	require.NotNil(t, first.MessagesRemainingToday)
	assert.Equal(t, int64(97), *first.MessagesRemainingToday)
	require.NotNil(t, first.ResetInSeconds)
	assert.Equal(t, 3, store.count("org1"))
}

func TestStatusDegradedOnStoreError(t *testing.T) {
	store := newMemoryStore()
	store.err = ErrStoreUnavailable
	limiter, _ := newTestLimiter(store, staticTiers{"org1": TierFree}, time.Unix(1700000000, 0))

	status := limiter.Status(context.Background(), "org1")

	assert.True(t, status.Degraded)
	assert.Equal(t, int64(0), status.MessagesSentToday)
	require.NotNil(t, status.MessagesRemainingToday)
	assert.Equal(t, int64(100), *status.MessagesRemainingToday)
}

func TestReset(t *testing.T) {
	store := newMemoryStore()
	limiter, now := newTestLimiter(store, staticTiers{"org1": TierFree}, time.Unix(1700000000, 0))

	require.True(t, limiter.Admit(context.Background(), "org1").Allowed)
	require.NoError(t, limiter.Reset(context.Background(), "org1"))

	assert.Equal(t, 0, store.count("org1"))

	*now = now.Add(100 * time.Millisecond)
	assert.True(t, limiter.Admit(context.Background(), "org1").Allowed)
}
