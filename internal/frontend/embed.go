// Package frontend serves the embedded dashboard page.
package frontend

import (
	"embed"
	"io/fs"
)

//go:embed dist
var distFS embed.FS

// GetDistFS returns the embedded dashboard files
func GetDistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
