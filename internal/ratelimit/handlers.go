package ratelimit

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the limits that apply to the caller
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyCount, err := rl.GetKeyCount(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}

		response := gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute":       rl.config.IPLimitPerMin,
				"analysis_per_minute": rl.config.AnalysisLimitPerMin,
				"import_per_minute":   rl.config.ImportLimitPerMin,
			},
			"total_keys":    keyCount,
			"limiter_stats": rl.GetStats(),
			"timestamp":     time.Now().Format(time.RFC3339),
		}
		if rl.metrics != nil {
			response["metrics"] = rl.metrics.GetRateLimitStats()
		}

		c.JSON(http.StatusOK, response)
	}
}

// HandleResetIP clears the counters held for one client address
func (rl *RateLimiter) HandleResetIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		if net.ParseIP(ip) == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid IP address"})
			return
		}

		if err := rl.InvalidateIP(c.Request.Context(), ip); err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "rate limits reset",
			"ip":        ip,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleResetAll clears every counter
func (rl *RateLimiter) HandleResetAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rl.InvalidateAll(c.Request.Context()); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":   "all rate limits reset",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
