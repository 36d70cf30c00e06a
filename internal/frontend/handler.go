package frontend

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/security"
)

// NewDashboardHandler serves the dashboard mounted under prefix. Files under
// assets/ are served as is and every other path renders the index page.
// It expects security.CSPMiddleware to run first.
func NewDashboardHandler(prefix string, dist fs.FS, index *template.Template) gin.HandlerFunc {
	fileServer := http.StripPrefix(prefix, http.FileServer(http.FS(dist)))

	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, prefix)

		if strings.HasPrefix(path, "/assets/") {
			if _, err := fs.Stat(dist, strings.TrimPrefix(path, "/")); err != nil {
				_ = c.Error(errors.NewNotFoundError("asset", path))
				return
			}
			c.Header("Cache-Control", "public, max-age=3600")
			fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}

		nonce := security.GetNonce(c)
		if nonce == "" {
			slog.Error("CSP nonce missing from context", "path", c.Request.URL.Path)
			_ = c.Error(errors.NewInternalError("Failed to render dashboard", nil))
			return
		}
		if err := RenderIndex(c, index, nonce); err != nil {
			_ = c.Error(errors.NewInternalError("Failed to render dashboard", err))
		}
	}
}
