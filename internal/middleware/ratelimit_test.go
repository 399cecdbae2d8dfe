package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatrelay/relay/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmitter struct {
	verdict ratelimit.Verdict
	gotOrg  string
}

func (f *fakeAdmitter) Admit(_ context.Context, organizationID string) ratelimit.Verdict {
	f.gotOrg = organizationID
	return f.verdict
}

func setupRouter(admitter Admitter) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/messages", func(c *gin.Context) {
		c.Set("organization_id", "org1")
		c.Next()
	}, Admission(admitter), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sent": true})
	})

	return router
}

func TestAdmissionAllowsAndSetsHeaders(t *testing.T) {
	admitter := &fakeAdmitter{verdict: ratelimit.Verdict{
		Allowed:   true,
		Tier:      ratelimit.TierFree,
		Limit:     100,
		Remaining: 99,
		ResetIn:   time.Hour,
	}}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/messages", nil)
	setupRouter(admitter).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "org1", admitter.gotOrg)
	assert.Equal(t, "100", recorder.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", recorder.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "3600", recorder.Header().Get("X-RateLimit-Reset-In-Seconds"))
}

func TestAdmissionRejectsWith429(t *testing.T) {
	admitter := &fakeAdmitter{verdict: ratelimit.Verdict{
		Kind:       ratelimit.RejectionPerSecond,
		Tier:       ratelimit.TierFree,
		RetryAfter: 900 * time.Millisecond,
	}}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/messages", nil)
	setupRouter(admitter).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "1", recorder.Header().Get("Retry-After"))

	var body ratelimit.RejectionBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "per_second_limit", body.Type)
	assert.InDelta(t, 0.9, body.RetryAfter, 0.001)
}

func TestAdmissionStoreUnavailableIsDistinct(t *testing.T) {
	admitter := &fakeAdmitter{verdict: ratelimit.Verdict{
		Kind:       ratelimit.RejectionStoreUnavailable,
		Tier:       ratelimit.TierPro,
		RetryAfter: time.Second,
	}}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/messages", nil)
	setupRouter(admitter).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)

	var body ratelimit.RejectionBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "store_unavailable", body.Type)
}
