package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/api/middleware"
	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/domain/search"
	"github.com/GriffinCanCode/stagingfs/internal/domain/walker"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
)

// List returns the immediate children of a directory in the caller's home.
// GET /list/*path?type=file|folder
func (h *Handlers) List(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	requested := c.Param("path")

	typ, err := walker.ParseType(c.Query("type"))
	if err != nil {
		h.handleError(c, err, requested, "list directory")
		return
	}

	dir, err := h.resolver.Resolve(id.Username, requested, sandbox.Directory)
	if err != nil {
		h.handleError(c, err, requested, "list directory")
		return
	}

	h.provision(c, id)

	entries, err := h.walker.List(c.Request.Context(), dir.Rel, walker.ListOptions{Type: typ})
	if err != nil {
		h.handleError(c, err, requested, "list directory")
		return
	}
	if entries == nil {
		entries = []walker.Entry{}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	c.JSON(http.StatusOK, entries)
}

// Search finds files below the caller's home whose path contains the query.
// It always answers 200; a hidden failure is flagged in a response header.
// GET /search/*query?folders=true
func (h *Handlers) Search(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	home, err := h.resolver.Home(id.Username)
	if err != nil {
		h.handleError(c, err, "/"+id.Username, "search")
		return
	}

	res := h.search.Search(c.Request.Context(), search.Query{
		Root:           home.Rel,
		Text:           strings.TrimPrefix(c.Param("query"), "/"),
		IncludeFolders: c.Query("folders") == "true",
	})
	if res.Degraded != "" {
		c.Header(middleware.DegradedHeader, res.Degraded)
	}

	c.JSON(http.StatusOK, res.Entries)
}

// Stat describes one file or folder, including its sniffed MIME type.
// GET /stat/*path
func (h *Handlers) Stat(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	requested := c.Param("path")

	target, err := h.resolver.Resolve(id.Username, requested, sandbox.File)
	if err == nil && h.isMarker(target) {
		err = filesystem.ErrNotFound
	}
	if err != nil {
		h.handleError(c, err, requested, "stat path")
		return
	}

	md, err := filesystem.Describe(c.Request.Context(), h.fs, target.Rel)
	if err != nil {
		h.handleError(c, err, requested, "stat path")
		return
	}
	c.JSON(http.StatusOK, md)
}

// DeleteFile removes one regular file. Directories are refused.
// DELETE /file/*path
func (h *Handlers) DeleteFile(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	requested := c.Param("path")

	target, err := h.resolver.Resolve(id.Username, requested, sandbox.File)
	if err == nil && h.isMarker(target) {
		err = filesystem.ErrNotFound
	}
	if err != nil {
		h.handleError(c, err, requested, "delete file")
		return
	}

	ctx := c.Request.Context()
	info, err := h.fs.Stat(ctx, target.Rel)
	if err == nil && info.IsDir() {
		err = filesystem.ErrIsDirectory
	}
	if err == nil {
		err = h.fs.Remove(ctx, target.Rel)
	}
	if err != nil {
		h.handleError(c, err, requested, "delete file")
		return
	}

	h.logger.Info("file deleted",
		zap.String("user", id.Username),
		zap.String("path", target.Rel),
	)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "path": target.Rel})
}

// isMarker reports whether p is the identity marker of its home. The marker
// is managed by the service and never exposed to clients.
func (h *Handlers) isMarker(p sandbox.SandboxedPath) bool {
	return p.Rel == p.HomeRel()+h.marker
}
