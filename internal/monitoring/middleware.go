package monitoring

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const slowRequestThreshold = 5 * time.Second

// MonitoringMiddleware counts and logs every request. Metrics are labelled
// by route template, not by raw path.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		c.Next()

		req := c.Request
		elapsed := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(route, req.Method, status, elapsed)
		logger.RequestLogger(req.Method, req.URL.Path, c.ClientIP(), req.UserAgent(), status, elapsed)

		for _, err := range c.Errors {
			logger.APIErrorLogger(err.Err, req.Method, req.URL.Path, c.ClientIP(), status)
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.SystemLogger("server_error", fmt.Sprintf("%s %s returned %d", req.Method, route, status))
		case elapsed > slowRequestThreshold:
			logger.PerformanceLogger("slow_request", elapsed.Seconds(), "seconds")
		}
	}
}

// probe flags one kind of hostile request.
type probe struct {
	kind  string
	match func(query, userAgent string) bool
}

var probes = []probe{
	{"potential_sql_injection", func(query, _ string) bool {
		return containsAny(query, "union select", "union all", "select * from", "drop table", "delete from", "';--", "/*", "*/")
	}},
	{"suspicious_user_agent", func(_, ua string) bool {
		return containsAny(ua, "sqlmap", "nmap", "masscan", "zmap", "dirbuster", "gobuster", "nikto", "acunetix", "nessus")
	}},
}

// SecurityMonitoringMiddleware logs requests that look like scans or
// injection attempts. Requests are never blocked here.
func SecurityMonitoringMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := url.QueryUnescape(c.Request.URL.RawQuery)
		if err != nil {
			query = c.Request.URL.RawQuery
		}
		ua := c.Request.UserAgent()

		for _, p := range probes {
			if !p.match(strings.ToLower(query), strings.ToLower(ua)) {
				continue
			}
			details := map[string]interface{}{"type": p.kind, "path": c.Request.URL.Path}
			if p.kind == "potential_sql_injection" {
				details["query"] = c.Request.URL.RawQuery
			}
			logger.SecurityLogger("suspicious_activity_detected", c.ClientIP(), ua, details)
		}

		c.Next()
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
