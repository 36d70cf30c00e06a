package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 5000, config.MaxTextLength)
	assert.EqualValues(t, 64<<20, config.MaxUploadBytes)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:3000")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
}

func TestValidateText(t *testing.T) {
	config := DefaultSecurityConfig()
	config.MaxTextLength = 20
	sm := NewSecurityMiddleware(config)

	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "valid", input: "slept badly -- tired"},
		{name: "multibyte within limit", input: strings.Repeat("é", 20)},
		{name: "too long", input: strings.Repeat("a", 21), errorMsg: "notes exceeds maximum length"},
		{name: "null bytes", input: "test\x00input", errorMsg: "notes contains invalid characters"},
		{name: "invalid UTF-8", input: "test\xff\xfe", errorMsg: "notes contains invalid UTF-8 encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateText("notes", tt.input)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		input    string
		expected string
	}{
		{"  focused morning  ", "focused morning"},
		{"<script>alert('x')</script>calm", "calm"},
		{"<b>deep</b>   work", "deep work"},
		{"line one\nline two", "line one\nline two"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sm.SanitizeText(tt.input))
	}
}

func TestSecurityHeaders(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.SecurityHeaders())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/swagger/*any", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	headers := w.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", headers.Get("X-XSS-Protection"))
	assert.Equal(t, apiCSP, headers.Get("Content-Security-Policy"))
	assert.Empty(t, headers.Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
}

func TestValidateContentType(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.ValidateContentType)
	r.POST("/sessions/:id/eeg", func(c *gin.Context) { c.Status(http.StatusCreated) })

	tests := []struct {
		contentType string
		expected    int
	}{
		{"application/json", http.StatusCreated},
		{"application/json; charset=utf-8", http.StatusCreated},
		{"text/csv", http.StatusCreated},
		{"text/plain; charset=utf-8", http.StatusCreated},
		{"application/octet-stream", http.StatusCreated},
		{"application/edf", http.StatusCreated},
		{"multipart/form-data; boundary=x", http.StatusCreated},
		{"", http.StatusCreated},
		{"text/html", http.StatusUnsupportedMediaType},
		{"application/xml", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/sessions/x/eeg", strings.NewReader("a"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestLimitUploadSize(t *testing.T) {
	config := DefaultSecurityConfig()
	config.MaxUploadBytes = 8
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.POST("/upload", sm.LimitUploadSize, func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(body))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("12345678")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestValidateIDParams(t *testing.T) {
	r := gin.New()
	r.GET("/sessions/:id", ValidateIDParams("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/0b6c1a4e-3f5d-4c1b-9a55-3c2f4d9e8a71", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid id")
}

func TestLocalOnly(t *testing.T) {
	r := gin.New()
	r.DELETE("/ratelimit", LocalOnly, func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       int
	}{
		{"ipv4 loopback", "127.0.0.1:51000", "", http.StatusOK},
		{"ipv6 loopback", "[::1]:51000", "", http.StatusOK},
		{"remote peer", "203.0.113.9:51000", "", http.StatusForbidden},
		{"spoofed forwarding header", "203.0.113.9:51000", "127.0.0.1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/ratelimit", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.CORS())
	r.GET("/users", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestTimeout(t *testing.T) {
	config := DefaultSecurityConfig()
	config.RequestTimeout = time.Millisecond
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.Use(sm.RequestTimeout)

	var ctxErr error
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		ctxErr = c.Request.Context().Err()
		c.Status(http.StatusGatewayTimeout)
	})

	w := httptest.NewRecorder()
	start := time.Now()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Less(t, time.Since(start), time.Second)
	assert.Error(t, ctxErr)
	assert.Equal(t, "0", w.Header().Get("X-Timeout"))
}
