package uploads

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/shared/server/middleware"
	"credit-backend/internal/shared/server/respond"
	"credit-backend/internal/shared/storage/object"
	"credit-backend/internal/shared/telemetry"
	"credit-backend/internal/shared/util"
)

const (
	maxUploadBytes    = 20 << 20
	defaultPresignTTL = 10 * time.Minute
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"text/plain":      {},
}

// Handler mints signed URLs for direct client uploads and downloads.
type Handler struct {
	Presigner object.Presigner
	TTL       time.Duration
	Now       func() time.Time
}

// NewHandler constructs a Handler. ttl defaults to ten minutes.
func NewHandler(presigner object.Presigner, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &Handler{Presigner: presigner, TTL: ttl, Now: time.Now}
}

// RegisterRoutes attaches the presign routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presignUpload)
	rg.POST("/downloads/presign", h.presignDownload)
}

type uploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	URL              string `json:"url"`
	FileKey          string `json:"fileKey"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) presignUpload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "sizeBytes exceeds limit", nil)
		return
	}
	sanitized, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid fileName", nil)
		return
	}

	key := object.UploadKey(middleware.UserIDFromContext(c), sanitized, h.now())
	url, err := h.Presigner.PresignPut(c.Request.Context(), key, req.ContentType, h.TTL)
	if err != nil {
		h.presignFailed(c, "uploads.presign.failed", key, err)
		return
	}

	respond.OK(c, presignResponse{
		URL:              url,
		FileKey:          key,
		ExpiresInSeconds: int64(h.TTL.Seconds()),
	})
}

type downloadRequest struct {
	FileKey string `json:"fileKey"`
}

func (h *Handler) presignDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FileKey) == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "fileKey is required", nil)
		return
	}
	key := strings.TrimSpace(req.FileKey)
	if !util.KeyOwnedBy(key, middleware.UserIDFromContext(c)) {
		respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "file key does not belong to caller", nil)
		return
	}

	url, err := h.Presigner.PresignGet(c.Request.Context(), key, h.TTL)
	if err != nil {
		h.presignFailed(c, "downloads.presign.failed", key, err)
		return
	}
	respond.OK(c, presignResponse{
		URL:              url,
		FileKey:          key,
		ExpiresInSeconds: int64(h.TTL.Seconds()),
	})
}

func (h *Handler) presignFailed(c *gin.Context, event, key string, err error) {
	if errors.Is(err, object.ErrPresignUnsupported) {
		respond.Error(c, http.StatusNotImplemented, respond.CodeNotConfigured, "signed urls are not available for this object store", nil)
		return
	}
	telemetry.Error(event, map[string]any{
		"error":      err,
		"key":        key,
		"request_id": middleware.RequestIDFromContext(c),
	})
	respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to generate signed url", nil)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
