package reports

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/letters"
	"credit-backend/internal/shared/server/middleware"
	"credit-backend/internal/shared/server/respond"
	"credit-backend/internal/shared/storage/object"
	"credit-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the reports service.
type Handler struct {
	Svc *Service
	// Presigner adds download URLs to letters when set.
	Presigner  object.Presigner
	PresignTTL time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, presigner object.Presigner, ttl time.Duration) *Handler {
	return &Handler{Svc: svc, Presigner: presigner, PresignTTL: ttl}
}

// RegisterRoutes attaches report and job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reports", h.createReport)
	rg.GET("/reports", h.listReports)
	rg.GET("/reports/:reportId", h.getReport)
	rg.GET("/reports/:reportId/result", h.getResult)
	rg.GET("/reports/:reportId/letters", h.listLetters)
	rg.POST("/reports/:reportId/retry", h.retryReport)
	rg.GET("/jobs/:id", h.getJob)
}

type createReportRequest struct {
	FileKey  string `json:"fileKey" binding:"required"`
	FileName string `json:"fileName"`
}

func (h *Handler) createReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "fileKey is required", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	report, job, err := h.Svc.Create(c.Request.Context(), userID, req.FileKey, req.FileName)
	if err != nil {
		switch {
		case errors.Is(err, ErrForbiddenKey):
			respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "file key does not belong to caller", nil)
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to create report", nil)
		}
		return
	}
	c.Set(middleware.ReportIDKey, report.ID)
	c.Set(middleware.JobIDKey, job.ID)

	respond.Created(c, gin.H{
		"report": report,
		"job":    job,
	})
}

func (h *Handler) listReports(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list reports", nil)
		return
	}
	respond.Items(c, items)
}

func (h *Handler) getReport(c *gin.Context) {
	reportID := c.Param("reportId")
	c.Set(middleware.ReportIDKey, reportID)
	report, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), reportID)
	if err != nil {
		h.lookupError(c, err, "report not found", "failed to fetch report")
		return
	}
	respond.OK(c, report)
}

func (h *Handler) getResult(c *gin.Context) {
	reportID := c.Param("reportId")
	c.Set(middleware.ReportIDKey, reportID)
	result, err := h.Svc.Result(c.Request.Context(), middleware.UserIDFromContext(c), reportID)
	if err != nil {
		h.lookupError(c, err, "result not available", "failed to fetch result")
		return
	}
	respond.OK(c, result)
}

type letterResponse struct {
	letters.Letter
	DownloadURL string `json:"download_url,omitempty"`
}

func (h *Handler) listLetters(c *gin.Context) {
	reportID := c.Param("reportId")
	c.Set(middleware.ReportIDKey, reportID)
	items, err := h.Svc.Letters(c.Request.Context(), middleware.UserIDFromContext(c), reportID)
	if err != nil {
		h.lookupError(c, err, "report not found", "failed to list letters")
		return
	}

	out := make([]letterResponse, 0, len(items))
	for _, l := range items {
		out = append(out, letterResponse{
			Letter:      l,
			DownloadURL: h.downloadURL(c.Request.Context(), l.FileKey),
		})
	}
	respond.Items(c, out)
}

func (h *Handler) retryReport(c *gin.Context) {
	reportID := c.Param("reportId")
	c.Set(middleware.ReportIDKey, reportID)
	job, err := h.Svc.Resubmit(c.Request.Context(), middleware.UserIDFromContext(c), reportID)
	if err != nil {
		h.lookupError(c, err, "report not found", "failed to resubmit report")
		return
	}
	c.Set(middleware.JobIDKey, job.ID)
	respond.Accepted(c, job)
}

func (h *Handler) getJob(c *gin.Context) {
	jobID := c.Param("id")
	c.Set(middleware.JobIDKey, jobID)
	job, err := h.Svc.Job(c.Request.Context(), middleware.UserIDFromContext(c), jobID)
	if err != nil {
		h.lookupError(c, err, "job not found", "failed to fetch job")
		return
	}
	c.Set(middleware.ReportIDKey, job.ReportID)
	respond.OK(c, job)
}

func (h *Handler) lookupError(c *gin.Context, err error, notFound, internal string) {
	if IsNotFound(err) {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, notFound, nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, internal, nil)
}

func (h *Handler) downloadURL(ctx context.Context, key string) string {
	if h.Presigner == nil {
		return ""
	}
	url, err := h.Presigner.PresignGet(ctx, key, h.PresignTTL)
	if err != nil {
		if !errors.Is(err, object.ErrPresignUnsupported) {
			telemetry.Warn("letters.presign.failed", map[string]any{"file_key": key, "error": err})
		}
		return ""
	}
	return url
}
