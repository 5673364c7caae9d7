package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "intent-payment-gateway/internal/adapter/storage/redis"
	"intent-payment-gateway/pkg/apperror"
	"intent-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines one fixed window for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-endpoint-group window sets. Windows
// are evaluated in order, shortest first; a request must clear all of them.
func DefaultRateLimitRules() map[string][]RateLimitRule {
	return map[string][]RateLimitRule{
		"payments_write": {
			{Limit: 30, Window: time.Minute},
			{Limit: 600, Window: time.Hour},
		},
		"payments_read": {
			{Limit: 120, Window: time.Minute},
		},
		"webhooks": {
			{Limit: 600, Window: time.Minute},
		},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Windows are checked in rule order; the first breaching window denies the
// request immediately and the remaining windows are neither evaluated nor
// charged.
func RateLimiter(store *redisStore.RateLimitStore, group string, rules []RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		var denied *redisStore.RateLimitResult
		var tightest *redisStore.RateLimitResult
		for _, rule := range rules {
			result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
			if err != nil {
				log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
				c.Next()
				return
			}
			if !result.Allowed {
				denied = result
				break
			}
			if tightest == nil || result.Remaining < tightest.Remaining {
				tightest = result
			}
		}

		headers := tightest
		if denied != nil {
			headers = denied
		}
		if headers != nil {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(headers.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(headers.Remaining, 10))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(headers.ResetAt, 10))
		}

		if denied != nil {
			retryAfter := denied.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimited())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source: the presented API
// key when one is on the request, the client IP otherwise.
func extractIdentifier(c *gin.Context) string {
	if ak := c.GetHeader(HeaderAPIKey); ak != "" {
		return ak
	}
	if mid, exists := c.Get(CtxMerchantID); exists {
		return fmt.Sprintf("%v", mid)
	}
	return c.ClientIP()
}
