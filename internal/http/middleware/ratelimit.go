package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"thermaleye-service/internal/ratelimit"
)

// RateLimit rejects requests over the limiter's window with a 429 and
// retry guidance. Stack multiple instances to combine a permissive
// general policy with a stricter one on ingestion routes.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Check(clientKey(c.Request))
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       decision.Limit,
				"period":      int(decision.Period.Seconds()),
				"retry_after": int(decision.RetryAfter.Seconds()),
			})
			return
		}
		c.Next()
	}
}

// clientKey resolves the client identity: first forwarded-for entry,
// then the direct connection address, then an "unknown" bucket.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
