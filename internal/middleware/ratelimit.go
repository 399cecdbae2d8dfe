package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/chatrelay/relay/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Admitter is the slice of the rate limiter the middleware needs.
type Admitter interface {
	Admit(ctx context.Context, organizationID string) ratelimit.Verdict
}

// Admission gates the send path behind the per-second throttle and the
// rolling daily quota. Rejections become 429s with the structured body and
// a Retry-After header; allowed requests carry the quota headers through.
func Admission(limiter Admitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationID := c.GetString("organization_id")

		verdict := limiter.Admit(c.Request.Context(), organizationID)

		for header, value := range verdict.Headers() {
			c.Header(header, value)
		}

		if !verdict.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int64(math.Ceil(verdict.RetryAfter.Seconds()))))
			c.JSON(http.StatusTooManyRequests, verdict.RejectionBody())
			c.Abort()
			return
		}

		c.Next()
	}
}
