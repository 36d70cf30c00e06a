package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware applies the global per-IP limit
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			// fail open
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}
			rejectRequest(c, result, "rate limit exceeded for IP",
				fmt.Sprintf("You have exceeded the rate limit of %d requests per minute", result.Limit))
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware limits one route per IP to limit requests per minute
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := fmt.Sprintf("ratelimit:endpoint:%s:%s", endpoint, ip)

		result, err := rl.Allow(c.Request.Context(), key, PerMinute(limit))
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Endpoint-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Endpoint-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitEndpoint(endpoint)
			}
			rejectRequest(c, result, fmt.Sprintf("rate limit exceeded for endpoint: %s", endpoint),
				fmt.Sprintf("You have exceeded the rate limit of %d requests per minute for this endpoint", result.Limit))
			return
		}

		c.Next()
	}
}

func rejectRequest(c *gin.Context, result *Result, errMsg, message string) {
	retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       errMsg,
		"category":    "rate_limit",
		"message":     message,
		"retry_after": retryAfter,
		"reset_at":    result.ResetAt.Unix(),
	})
}
