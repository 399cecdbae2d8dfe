package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersForCappedTier(t *testing.T) {
	verdict := Verdict{
		Allowed:   true,
		Tier:      TierFree,
		Limit:     100,
		Remaining: 42,
		ResetIn:   90 * time.Minute,
	}

	headers := verdict.Headers()
	assert.Equal(t, "100", headers["X-RateLimit-Limit"])
	assert.Equal(t, "42", headers["X-RateLimit-Remaining"])
	assert.Equal(t, "5400", headers["X-RateLimit-Reset-In-Seconds"])
}

func TestHeadersOmittedForUncappedTier(t *testing.T) {
	verdict := allowed(TierGrowth)
	assert.Nil(t, verdict.Headers())
}

func TestPerSecondRejectionBody(t *testing.T) {
	verdict := rejectedPerSecond(TierBasic, 437*time.Millisecond)

	body := verdict.RejectionBody()
	require.NotNil(t, body)
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, "per_second_limit", body.Type)
	assert.Equal(t, 0.437, body.RetryAfter)
	assert.Empty(t, body.UpgradeLink)
}

func TestDailyRejectionBody(t *testing.T) {
	verdict := rejectedDaily(TierFree, FreeDailyLimit, 86300*time.Second)

	body := verdict.RejectionBody()
	require.NotNil(t, body)
	assert.Equal(t, "Daily message limit exceeded", body.Error)
	assert.Equal(t, "daily_limit", body.Type)
	assert.Equal(t, float64(86300), body.RetryAfter)
	assert.NotEmpty(t, body.UpgradeLink)
}

func TestRetryAfterNeverNegative(t *testing.T) {
	verdict := rejectedPerSecond(TierFree, -5*time.Millisecond)
	assert.Equal(t, time.Duration(0), verdict.RetryAfter)
}

func TestAllowedHasNoRejectionBody(t *testing.T) {
	assert.Nil(t, allowed(TierFree).RejectionBody())
}
