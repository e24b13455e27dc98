package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	"github.com/garyjia/assignment-fulfillment/internal/domain/action"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	logger         Logger
	maxUploadBytes int64
	maxFileSize    int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Status  string      `json:"status,omitempty"`
	Allowed []string    `json:"allowed,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Version   string       `json:"version"`
	Checks    HealthReport `json:"checks,omitempty"`
}

// HealthCheck handles GET /health. Any unhealthy component turns the answer into a 503.
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	code := http.StatusOK

	if h.services.Health != nil {
		report := h.services.Health()
		resp.Checks = report
		if !report.Healthy() {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{Success: code == http.StatusOK, Data: resp})
}

// Assign handles POST /api/assignments
func (h *Handlers) Assign(c *gin.Context) {
	var in service.AssignInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, "assign", fmt.Errorf("%w: %v", workflow.ErrInvalidInput, err))
		return
	}

	assignment, err := h.services.Assignments.Assign(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "assign", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: assignment})
}

// ListAssignments handles GET /api/assignments?bucket=
func (h *Handlers) ListAssignments(c *gin.Context) {
	assignments, err := h.services.Assignments.ListByFilter(c.Request.Context(), c.Query("bucket"))
	if err != nil {
		h.respondError(c, "list_assignments", err)
		return
	}
	if assignments == nil {
		assignments = []*entity.Assignment{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignments})
}

// GetAssignment handles GET /api/assignments/:id
func (h *Handlers) GetAssignment(c *gin.Context) {
	assignment, err := h.services.Assignments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get_assignment", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignment})
}

// ListFiles handles GET /api/assignments/:id/files
func (h *Handlers) ListFiles(c *gin.Context) {
	files, err := h.services.Assignments.ListFiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "list_files", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: files})
}

// DownloadFile handles GET /api/assignments/:id/files/:index
func (h *Handlers) DownloadFile(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.respondError(c, "download_file", fmt.Errorf("%w: file index must be a number", workflow.ErrInvalidInput))
		return
	}

	file, rc, err := h.services.Assignments.OpenFile(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		h.respondError(c, "download_file", err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.FileName),
	})
}

// History handles GET /api/assignments/:id/history.
// ?transitions=only drops entries that left the status unchanged, such as extra uploads.
func (h *Handlers) History(c *gin.Context) {
	records, err := h.services.Assignments.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "history", err)
		return
	}

	if c.Query("transitions") == "only" {
		filtered := records[:0]
		for _, r := range records {
			if r.Transitioned() {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// Notifications handles GET /api/assignments/:id/notifications
func (h *Handlers) Notifications(c *gin.Context) {
	records, err := h.services.Assignments.Notifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "notifications", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// Payments handles GET /api/assignments/:id/payments
func (h *Handlers) Payments(c *gin.Context) {
	records, err := h.services.Assignments.Payments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "payments", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ExecuteAction handles POST /api/assignments/:id/actions
func (h *Handlers) ExecuteAction(c *gin.Context) {
	id := c.Param("id")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.respondError(c, "execute_action", fmt.Errorf("%w: unreadable body: %v", workflow.ErrInvalidInput, err))
		return
	}

	act, err := action.Decode(body)
	if err != nil {
		h.respondError(c, "execute_action", err)
		return
	}

	h.logger.Info("Executing action", "assignment_id", id, "action", act.Trigger())

	result, err := h.services.Engine.Execute(c.Request.Context(), id, act)
	if err != nil {
		h.respondError(c, "execute_action", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// UploadFiles handles POST /api/assignments/:id/files as multipart form data.
// Each "files" part is paired with the "fileTypes" value at the same index.
func (h *Handlers) UploadFiles(c *gin.Context) {
	id := c.Param("id")

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		h.respondError(c, "upload_files", fmt.Errorf("%w: multipart form required: %v", workflow.ErrInvalidInput, err))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	headers := form.File["files"]
	fileTypes := form.Value["fileTypes"]

	uploads := make([]entity.FileUpload, 0, len(headers))
	for _, fh := range headers {
		if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
			h.respondError(c, "upload_files", fmt.Errorf("%w: %s is %d bytes, limit is %d",
				workflow.ErrInvalidInput, fh.Filename, fh.Size, h.maxFileSize))
			return
		}
		upload, err := readUpload(fh)
		if err != nil {
			h.respondError(c, "upload_files", fmt.Errorf("%w: %v", workflow.ErrInvalidInput, err))
			return
		}
		uploads = append(uploads, upload)
	}

	result, err := h.services.Engine.UploadFiles(c.Request.Context(), id, uploads, fileTypes)
	if err != nil {
		h.respondError(c, "upload_files", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ConfirmPayment handles POST /api/assignments/:id/payments/:kind/confirm
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	id := c.Param("id")
	kind := entity.PaymentKind(c.Param("kind"))

	assignment, err := h.services.Payments.ConfirmPayment(c.Request.Context(), id, kind)
	if err != nil {
		h.respondError(c, "confirm_payment", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignment})
}

// ExportReport handles GET /api/reports/assignments?bucket=&format=
func (h *Handlers) ExportReport(c *gin.Context) {
	bucket := c.DefaultQuery("bucket", entity.BucketAll)
	format := c.Query("format")
	if format == "" {
		format = h.defaultReportFormat()
	}

	// Buffer so a failed export still gets a proper error response
	var buf bytes.Buffer
	contentType, err := h.services.Reports.Export(c.Request.Context(), bucket, format, &buf)
	if err != nil {
		h.respondError(c, "export_report", err)
		return
	}

	filename := fmt.Sprintf("assignments-%s-%s.%s", bucket, time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// defaultReportFormat prefers xlsx and falls back to the first registered format
func (h *Handlers) defaultReportFormat() string {
	formats := h.services.Reports.Formats()
	for _, f := range formats {
		if f == "xlsx" {
			return f
		}
	}
	if len(formats) > 0 {
		return formats[0]
	}
	return "xlsx"
}

func readUpload(fh *multipart.FileHeader) (entity.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return entity.FileUpload{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return entity.FileUpload{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}

	return entity.FileUpload{
		FileName: fh.Filename,
		Content:  content,
		MimeType: fh.Header.Get("Content-Type"),
	}, nil
}
