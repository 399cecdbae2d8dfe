package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

// Tier is an organization's subscription tier. Only the free tier carries a
// daily message cap; the per-second throttle applies to every tier.
type Tier string

const (
	TierFree   Tier = "free"
	TierBasic  Tier = "basic"
	TierPro    Tier = "pro"
	TierGrowth Tier = "growth"
)

const (
	// PerSecondLimit is the message spacing floor for all tiers.
	PerSecondLimit = 1

	// FreeDailyLimit is the free-tier cap over a rolling 24-hour window.
	FreeDailyLimit = 100

	dayWindow = 24 * time.Hour
)

// ParseTier maps a stored tier string to a Tier. Anything unrecognized is
// treated as free so an unknown plan never gets an unlimited quota.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBasic, TierPro, TierGrowth:
		return Tier(s)
	default:
		return TierFree
	}
}

// DailyLimit returns the rolling 24-hour cap for the tier. ok is false for
// uncapped tiers.
func (t Tier) DailyLimit() (limit int, ok bool) {
	if t == TierFree {
		return FreeDailyLimit, true
	}
	return 0, false
}

// TierResolver maps an organization ID to its current tier.
type TierResolver interface {
	ResolveTier(ctx context.Context, organizationID string) Tier
}

// TierSource is the record-store lookup the resolver is built on.
type TierSource interface {
	FetchTier(ctx context.Context, organizationID string) (string, error)
}

type cachedTier struct {
	tier      Tier
	fetchedAt time.Time
}

// CachedTierResolver resolves tiers through a TierSource and keeps each
// answer for a short TTL so the send path does not hit the record store on
// every message. Lookup failures resolve to free and are not cached, so a
// healthy store recovers the real tier on the next call.
type CachedTierResolver struct {
	source TierSource
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cachedTier

	now func() time.Time
}

func NewCachedTierResolver(source TierSource, ttl time.Duration) *CachedTierResolver {
	return &CachedTierResolver{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cachedTier),
		now:     time.Now,
	}
}

func (r *CachedTierResolver) ResolveTier(ctx context.Context, organizationID string) Tier {
	r.mu.RLock()
	entry, ok := r.entries[organizationID]
	r.mu.RUnlock()

	if ok && r.now().Sub(entry.fetchedAt) < r.ttl {
		return entry.tier
	}

	raw, err := r.source.FetchTier(ctx, organizationID)
	if err != nil {
		log.Printf("Failed to fetch tier for organization %s, assuming free: %v", organizationID, err)
		return TierFree
	}

	tier := ParseTier(raw)

	r.mu.Lock()
	r.entries[organizationID] = cachedTier{tier: tier, fetchedAt: r.now()}
	r.mu.Unlock()

	return tier
}

// Invalidate drops the cached tier for an organization, e.g. after a plan
// change is written through the API.
func (r *CachedTierResolver) Invalidate(organizationID string) {
	r.mu.Lock()
	delete(r.entries, organizationID)
	r.mu.Unlock()
}
