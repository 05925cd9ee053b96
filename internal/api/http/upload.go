package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/domain/upload"
)

// Upload form fields.
const (
	FieldUploads  = "uploads"
	FieldDestPath = "destPath"
)

// Upload statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// UploadResult reports one file of a batch.
type UploadResult struct {
	Name       string `json:"name"`
	Path       string `json:"path,omitempty"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"mtime,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Upload receives a multipart batch into destPath. Once the batch starts the
// response is 200 with one result per file, in request order; each file
// succeeds or fails on its own.
// POST /upload
func (h *Handlers) Upload(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			h.logger.Debug("failed to remove multipart temp files", zap.Error(err))
		}
	}()

	files := form.File[FieldUploads]
	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}
	if err := h.publisher.CheckBatch(len(files)); err != nil {
		h.handleError(c, err, "", "upload")
		return
	}

	destPath := firstValue(form.Value[FieldDestPath])
	if destPath == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "destPath is required"})
		return
	}

	dir, err := h.publisher.ResolveDestination(id.Username, destPath)
	if err != nil {
		h.handleError(c, err, destPath, "upload")
		return
	}

	h.provision(c, id)

	ctx := c.Request.Context()
	results := make([]UploadResult, len(files))
	var (
		tasks   []upload.Task
		indexes []int
	)
	for i, fh := range files {
		results[i] = UploadResult{Name: fh.Filename, Status: StatusFailed}

		task, err := h.receive(c, dir, fh)
		if err != nil {
			results[i].Error = uploadFailure(err)
			continue
		}
		tasks = append(tasks, task)
		indexes = append(indexes, i)
	}

	for j, out := range h.publisher.PublishAll(ctx, tasks) {
		r := &results[indexes[j]]
		r.Name = out.Task.Name
		r.Size = out.Task.Size
		if !out.OK() {
			r.Error = uploadFailure(out.Err)
			continue
		}
		r.Path = out.Task.DestPath
		r.ModifiedAt = out.PublishedAt.UnixMilli()
		r.Status = StatusOK
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handlers) receive(c *gin.Context, dir sandbox.SandboxedPath, fh *multipart.FileHeader) (upload.Task, error) {
	task, err := h.publisher.Prepare(dir, fh.Filename)
	if err != nil {
		return task, err
	}
	if task.Name == h.marker {
		return task, fmt.Errorf("%w: %q is reserved", upload.ErrInvalidName, task.Name)
	}

	src, err := fh.Open()
	if err != nil {
		return task, fmt.Errorf("%w: %w", upload.ErrReceiveFailed, err)
	}
	defer src.Close()

	return h.publisher.Receive(c.Request.Context(), task, src)
}

func firstValue(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
