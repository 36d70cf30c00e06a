package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
)

var (
	scriptTagRegex = regexp.MustCompile(`<script([^>]*)>`)
	styleTagRegex  = regexp.MustCompile(`<link([^>]*rel=["']stylesheet["'][^>]*)>`)
)

// LoadIndexTemplate parses index.html with a nonce placeholder on every
// script and stylesheet tag
func LoadIndexTemplate(dist fs.FS) (*template.Template, error) {
	f, err := dist.Open("index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to open index.html: %w", err)
	}
	defer errors.SafeClose(f, "index.html")

	html, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read index.html: %w", err)
	}

	tmpl, err := template.New("index").Parse(addNoncePlaceholders(string(html)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

func addNoncePlaceholders(html string) string {
	html = scriptTagRegex.ReplaceAllString(html, `<script nonce="{{.Nonce}}"$1>`)
	return styleTagRegex.ReplaceAllString(html, `<link nonce="{{.Nonce}}"$1>`)
}

// RenderIndex writes the page with nonce filled in. The page is never cached.
func RenderIndex(c *gin.Context, tmpl *template.Template, nonce string) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]interface{}{"Nonce": nonce}); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	return nil
}
