package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendly/attendly-api/internal/ingest"
	"github.com/attendly/attendly-api/pkg/config"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
	"github.com/attendly/attendly-api/pkg/response"
)

type ingestionService interface {
	ImportRoster(ctx context.Context, schoolID, classID, filename string, data []byte) (*ingest.RosterSummary, error)
	ImportPhotos(ctx context.Context, schoolID, classID string, data []byte) (*ingest.PhotoSummary, error)
}

// IngestionHandler exposes the bulk roster and photo import endpoints.
type IngestionHandler struct {
	service ingestionService
	limits  config.IngestionConfig
}

// NewIngestionHandler constructs IngestionHandler.
func NewIngestionHandler(svc ingestionService, limits config.IngestionConfig) *IngestionHandler {
	return &IngestionHandler{service: svc, limits: limits}
}

// BulkRoster godoc
// @Summary Bulk import a class roster
// @Description Imports a roster spreadsheet; each row is reported with an individual outcome
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param class_id formData string true "Target class"
// @Param file formData file true "Roster spreadsheet (.xlsx or .csv)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/bulk-upload [post]
func (h *IngestionHandler) BulkRoster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	classID := c.PostForm("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "roster file is required"))
		return
	}
	if h.limits.MaxRosterSizeBytes > 0 && file.Size > h.limits.MaxRosterSizeBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "roster file exceeds the size limit"))
		return
	}

	data, err := readMultipartFile(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read roster file"))
		return
	}

	summary, err := h.service.ImportRoster(c.Request.Context(), claims.SchoolID, classID, file.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// BulkPhotos godoc
// @Summary Bulk import student photos
// @Description Imports a ZIP archive of photos named by roll number; each entry is reported with an individual outcome
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param class_id formData string true "Target class"
// @Param file formData file true "Photo archive (.zip)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/bulk-photo-upload [post]
func (h *IngestionHandler) BulkPhotos(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	classID := c.PostForm("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "photo archive is required"))
		return
	}
	if h.limits.MaxArchiveSizeBytes > 0 && file.Size > h.limits.MaxArchiveSizeBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "photo archive exceeds the size limit"))
		return
	}

	data, err := readMultipartFile(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read photo archive"))
		return
	}

	summary, err := h.service.ImportPhotos(c.Request.Context(), claims.SchoolID, classID, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
