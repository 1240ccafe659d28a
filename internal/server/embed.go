// Package server handles embedding and serving of the frontend pages.
// Static files are embedded via the root-level webui package,
// which can access the sibling web/ directory via go:embed.
package server

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vesaa/backdrop/webui"
)

// Embedded pages, one per plane.
const (
	PanelPage  = "index.html"
	ViewerPage = "viewer.html"
)

// RegisterStaticFiles mounts the embedded frontend on the Gin engine.
// API routes registered before this take precedence; every unmatched
// GET returns page so the browser app can route on its own.
func RegisterStaticFiles(r *gin.Engine, page string) {
	webRoot, err := fs.Sub(webui.FS, "web")
	if err != nil {
		panic("embed: web sub-fs failed: " + err.Error())
	}
	staticFS := http.FS(webRoot)

	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		f, err := staticFS.Open(page)
		if err != nil {
			c.String(http.StatusNotFound, "UI not found: %s is missing from the build", page)
			return
		}
		defer f.Close()
		stat, _ := f.Stat()
		c.DataFromReader(http.StatusOK, stat.Size(), "text/html; charset=utf-8", f, nil)
	})
}
