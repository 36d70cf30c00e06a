package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxTextLength  int           `json:"max_text_length"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	AllowedOrigins []string      `json:"allowed_origins"`
	TrustedProxies []string      `json:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHSTS     bool          `json:"enable_hsts"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxTextLength:  5000,
		MaxUploadBytes: 64 << 20,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies: []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware bundles request hardening for the API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// Config returns the active configuration.
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

var (
	scriptPattern  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	spacePattern   = regexp.MustCompile(`[ \t]+`)
)

// ValidateText checks a free-text field such as notes or a journal entry
func (sm *SecurityMiddleware) ValidateText(field, input string) error {
	if utf8.RuneCountInString(input) > sm.config.MaxTextLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, sm.config.MaxTextLength)
	}
	if strings.Contains(input, "\x00") {
		return fmt.Errorf("%s contains invalid characters", field)
	}
	if !utf8.ValidString(input) {
		return fmt.Errorf("%s contains invalid UTF-8 encoding", field)
	}
	return nil
}

// SanitizeText strips markup from free text. Line breaks are kept since
// journal entries are multi-line.
func (sm *SecurityMiddleware) SanitizeText(input string) string {
	input = strings.TrimSpace(input)
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = spacePattern.ReplaceAllString(input, " ")
	return input
}

// SecurityHeaders adds the API security headers
func (sm *SecurityMiddleware) SecurityHeaders() gin.HandlerFunc {
	return SecurityHeadersMiddleware(sm.config.EnableHSTS, "/swagger/")
}

var allowedContentTypes = []string{
	"application/json",
	"text/csv",
	"text/plain",
	"application/octet-stream",
	"application/edf",
	"multipart/form-data",
	"application/x-www-form-urlencoded",
}

// ValidateContentType rejects request bodies in formats the API does not read
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := strings.ToLower(c.GetHeader("Content-Type"))

	if contentType != "" {
		found := false
		for _, allowed := range allowedContentTypes {
			if strings.HasPrefix(contentType, allowed) {
				found = true
				break
			}
		}

		if !found {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error":    "unsupported content type",
				"category": "validation",
			})
			return
		}
	}

	c.Next()
}

// LimitUploadSize caps the request body at MaxUploadBytes
func (sm *SecurityMiddleware) LimitUploadSize(c *gin.Context) {
	if c.Request.ContentLength > sm.config.MaxUploadBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":    fmt.Sprintf("request body exceeds %d bytes", sm.config.MaxUploadBytes),
			"category": "validation",
		})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxUploadBytes)
	c.Next()
}

// RequestTimeout bounds the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// ValidateIDParams rejects path parameters that are not UUIDs
func ValidateIDParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value := c.Param(name)
			if value == "" {
				continue
			}
			if _, err := uuid.Parse(value); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":    fmt.Sprintf("invalid %s: must be a UUID", name),
					"category": "validation",
				})
				return
			}
		}
		c.Next()
	}
}

// LocalOnly serves the route only to loopback peers. Forwarding headers
// are ignored.
func LocalOnly(c *gin.Context) {
	ip := net.ParseIP(c.RemoteIP())
	if ip == nil || !ip.IsLoopback() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    "endpoint is only available from localhost",
			"category": "forbidden",
		})
		return
	}
	c.Next()
}

// CORS returns the cross-origin policy for the dashboard
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "X-Cache"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(sm.config.AllowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = sm.config.AllowedOrigins
	}
	return cors.New(config)
}
