package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const nonceKey = "csp-nonce"

// GenerateNonce returns a random base64 nonce
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// CSPMiddleware replaces the API policy with one that lets the dashboard
// load its own scripts and styles and call the API. The nonce is stored on
// the context for the page template.
func CSPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := GenerateNonce()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(nonceKey, nonce)
		c.Header("Content-Security-Policy", dashboardCSP(nonce))
		c.Next()
	}
}

// GetNonce returns the nonce set by CSPMiddleware, or ""
func GetNonce(c *gin.Context) string {
	if nonce, ok := c.Get(nonceKey); ok {
		if s, ok := nonce.(string); ok {
			return s
		}
	}
	return ""
}

func dashboardCSP(nonce string) string {
	return fmt.Sprintf(
		"default-src 'none'; "+
			"script-src 'self' 'nonce-%s'; "+
			"style-src 'self' 'nonce-%s'; "+
			"img-src 'self' data:; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'; "+
			"base-uri 'self'; "+
			"form-action 'none'",
		nonce, nonce,
	)
}
