package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// RejectionKind is the `type` field surfaced in 429 bodies so callers can
// tell "over quota" apart from "the limiter is broken".
type RejectionKind string

const (
	RejectionPerSecond        RejectionKind = "per_second_limit"
	RejectionDaily            RejectionKind = "daily_limit"
	RejectionStoreUnavailable RejectionKind = "store_unavailable"
)

const upgradeLink = "https://chatrelay.dev/dashboard/billing/plan"

// Verdict is the outcome of one admission decision. Exactly one of Allowed
// or Kind is meaningful; quota fields are populated for capped tiers only.
type Verdict struct {
	Allowed    bool
	Kind       RejectionKind
	Tier       Tier
	RetryAfter time.Duration

	// Quota metadata, valid when Limit > 0.
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Headers returns the response headers an allowed send should carry.
// Uncapped tiers have no meaningful limit or remaining count, so they get
// none.
func (v Verdict) Headers() map[string]string {
	if v.Limit == 0 {
		return nil
	}

	headers := map[string]string{
		"X-RateLimit-Limit":     fmt.Sprintf("%d", v.Limit),
		"X-RateLimit-Remaining": fmt.Sprintf("%d", v.Remaining),
	}
	if v.ResetIn > 0 {
		headers["X-RateLimit-Reset-In-Seconds"] = fmt.Sprintf("%d", int64(math.Ceil(v.ResetIn.Seconds())))
	}
	return headers
}

// RejectionBody is the JSON payload rendered with a 429.
type RejectionBody struct {
	Error       string  `json:"error"`
	Message     string  `json:"message"`
	RetryAfter  float64 `json:"retry_after"`
	Type        string  `json:"type"`
	UpgradeLink string  `json:"upgrade_link,omitempty"`
}

// RejectionBody builds the payload for a rejected verdict. Returns nil for
// allowed verdicts.
func (v Verdict) RejectionBody() *RejectionBody {
	switch v.Kind {
	case RejectionPerSecond:
		return &RejectionBody{
			Error:      "Rate limit exceeded",
			Message:    "Maximum 1 message per second",
			RetryAfter: roundSeconds(v.RetryAfter, 3),
			Type:       string(RejectionPerSecond),
		}
	case RejectionDaily:
		return &RejectionBody{
			Error:       "Daily message limit exceeded",
			Message:     fmt.Sprintf("Free tier is limited to %d messages per rolling 24-hour period", FreeDailyLimit),
			RetryAfter:  math.Ceil(v.RetryAfter.Seconds()),
			Type:        string(RejectionDaily),
			UpgradeLink: upgradeLink,
		}
	case RejectionStoreUnavailable:
		return &RejectionBody{
			Error:      "Rate limiter unavailable",
			Message:    "Unable to verify rate limits, please retry",
			RetryAfter: roundSeconds(v.RetryAfter, 3),
			Type:       string(RejectionStoreUnavailable),
		}
	}
	return nil
}

func roundSeconds(d time.Duration, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(d.Seconds()*factor) / factor
}

func allowed(tier Tier) Verdict {
	return Verdict{Allowed: true, Tier: tier}
}

func rejectedPerSecond(tier Tier, retryAfter time.Duration) Verdict {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Verdict{Kind: RejectionPerSecond, Tier: tier, RetryAfter: retryAfter}
}

func rejectedDaily(tier Tier, limit int, retryAfter time.Duration) Verdict {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Verdict{Kind: RejectionDaily, Tier: tier, Limit: limit, RetryAfter: retryAfter}
}

func rejectedStoreUnavailable(tier Tier) Verdict {
	return Verdict{Kind: RejectionStoreUnavailable, Tier: tier, RetryAfter: time.Second}
}
