package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thermaleye-service/internal/config"
	"thermaleye-service/internal/http/middleware"
	"thermaleye-service/internal/service"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Handler struct {
	reports *service.ReportService
	config  *config.Config
	log     zerolog.Logger
}

func NewHandler(reports *service.ReportService, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		reports: reports,
		config:  cfg,
		log:     log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware, generalLimit, uploadLimit gin.HandlerFunc) {
	// Health probes live outside this group and stay unthrottled.
	api := r.Group("/api/v1")
	api.Use(generalLimit, authMiddleware)
	{
		api.GET("/reports", h.listReports)
		api.GET("/reports/:id", h.getReport)
		api.GET("/reports/:id/progression", h.faultProgression)
		api.DELETE("/reports/:id", middleware.RequireAdmin(), h.deleteReport)
		api.POST("/reports/delete-batch", middleware.RequireAdmin(), h.deleteReportsBatch)

		// Ingestion is resource-intensive; it carries its own stricter
		// limit on top of the general one.
		uploads := api.Group("")
		uploads.Use(uploadLimit)
		{
			uploads.POST("/reports/upload", h.uploadImage)
			uploads.POST("/reports/upload/batch", h.uploadBatch)
		}
	}
}

func (h *Handler) uploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("file field is required"))
		return
	}

	data, err := h.readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	h.log.Info().
		Str("filename", fileHeader.Filename).
		Int("size", len(data)).
		Msg("processing uploaded inspection image")

	report, err := h.reports.ProcessImage(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("failed to process upload")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *Handler) uploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid multipart payload"))
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse("files field is required"))
		return
	}

	files := make([]service.UploadFile, 0, len(fileHeaders))
	var rejected []service.BatchError
	for _, fh := range fileHeaders {
		data, err := h.readUpload(fh)
		if err != nil {
			rejected = append(rejected, service.BatchError{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		files = append(files, service.UploadFile{Name: fh.Filename, Data: data})
	}

	result := h.reports.ProcessBatch(c.Request.Context(), files)
	result.Errors = append(rejected, result.Errors...)

	h.log.Info().
		Int("processed", len(result.Processed)).
		Int("failed", len(result.Errors)).
		Msg("processed batch upload")

	c.JSON(http.StatusCreated, gin.H{
		"processed_count": len(result.Processed),
		"error_count":     len(result.Errors),
		"reports":         result.Processed,
		"errors":          result.Errors,
	})
}

// readUpload enforces the extension and size policy before any decoding.
func (h *Handler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	ext := strings.ToLower(fh.Filename[strings.LastIndex(fh.Filename, ".")+1:])
	if !allowedExtensions["."+ext] {
		return nil, fmt.Errorf("invalid file type %q, only jpg, jpeg, png are allowed", ext)
	}
	if fh.Size > h.config.MaxUploadSize {
		return nil, fmt.Errorf("file too large, maximum size is %dMB", h.config.MaxUploadSize/(1<<20))
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot read upload: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.config.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read upload: %v", err)
	}
	if int64(len(data)) > h.config.MaxUploadSize {
		return nil, fmt.Errorf("file too large, maximum size is %dMB", h.config.MaxUploadSize/(1<<20))
	}
	return data, nil
}

func (h *Handler) listReports(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	reports, err := h.reports.ListReports(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list reports")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(reports))
}

func (h *Handler) getReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid report id"))
		return
	}

	report, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(report))
}

func (h *Handler) faultProgression(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid report id"))
		return
	}

	points, err := h.reports.FaultProgression(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(points))
}

func (h *Handler) deleteReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid report id"))
		return
	}

	if err := h.reports.DeleteReport(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) deleteReportsBatch(c *gin.Context) {
	var payload struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	deleted, err := h.reports.DeleteReports(c.Request.Context(), payload.IDs)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted_count": deleted})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}
