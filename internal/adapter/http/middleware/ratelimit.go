package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "clearway-webhooks/internal/adapter/storage/redis"
	"clearway-webhooks/pkg/apperror"
	"clearway-webhooks/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	GroupInbound      = "inbound"
	GroupWebhooksMgmt = "webhooks_mgmt"
	GroupWebhooksTest = "webhooks_test"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupInbound:      {Limit: 600, Window: time.Minute},
		GroupWebhooksMgmt: {Limit: 60, Window: time.Minute},
		GroupWebhooksTest: {Limit: 10, Window: time.Minute},
	}
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// A store failure lets the request through.
func RateLimiter(store RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", identifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := max(result.ResetAt-time.Now().Unix(), 1)
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.AbortWithError(c, apperror.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}

// identifier keys management calls by owner and everything else by source
// address. Unauthenticated path segments never pick the bucket.
func identifier(c *gin.Context) string {
	if owner, ok := OwnerID(c); ok {
		return owner.String()
	}
	return c.ClientIP()
}
