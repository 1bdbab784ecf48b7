package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly-api/internal/ingest"
	"github.com/attendly/attendly-api/internal/middleware"
	"github.com/attendly/attendly-api/internal/models"
	"github.com/attendly/attendly-api/pkg/config"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
	"github.com/attendly/attendly-api/pkg/response"
)

type ingestionServiceMock struct {
	rosterSummary *ingest.RosterSummary
	rosterErr     error
	photoSummary  *ingest.PhotoSummary
	photoErr      error

	gotSchoolID string
	gotClassID  string
	gotFilename string
	gotData     []byte
}

func (m *ingestionServiceMock) ImportRoster(_ context.Context, schoolID, classID, filename string, data []byte) (*ingest.RosterSummary, error) {
	m.gotSchoolID = schoolID
	m.gotClassID = classID
	m.gotFilename = filename
	m.gotData = data
	return m.rosterSummary, m.rosterErr
}

func (m *ingestionServiceMock) ImportPhotos(_ context.Context, schoolID, classID string, data []byte) (*ingest.PhotoSummary, error) {
	m.gotSchoolID = schoolID
	m.gotClassID = classID
	m.gotData = data
	return m.photoSummary, m.photoErr
}

func newUploadContext(t *testing.T, path, classID string, fileContents []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if classID != "" {
		require.NoError(t, writer.WriteField("class_id", classID))
	}
	if fileContents != nil {
		part, err := writer.CreateFormFile("file", "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(fileContents)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", SchoolID: "school1", Role: models.RoleTeacher})
	return c, w
}

func TestIngestionHandlerBulkRoster(t *testing.T) {
	mockSvc := &ingestionServiceMock{
		rosterSummary: &ingest.RosterSummary{Total: 3, Created: 2, Updated: 1},
	}
	handler := NewIngestionHandler(mockSvc, config.IngestionConfig{})

	c, w := newUploadContext(t, "/students/bulk-upload", "class1", []byte("roster-bytes"))
	handler.BulkRoster(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school1", mockSvc.gotSchoolID)
	assert.Equal(t, "class1", mockSvc.gotClassID)
	assert.Equal(t, "upload.bin", mockSvc.gotFilename)
	assert.Equal(t, []byte("roster-bytes"), mockSvc.gotData)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(2), data["created"])
}

func TestIngestionHandlerBulkRosterMissingClass(t *testing.T) {
	handler := NewIngestionHandler(&ingestionServiceMock{}, config.IngestionConfig{})

	c, w := newUploadContext(t, "/students/bulk-upload", "", []byte("roster-bytes"))
	handler.BulkRoster(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionHandlerBulkRosterMissingFile(t *testing.T) {
	handler := NewIngestionHandler(&ingestionServiceMock{}, config.IngestionConfig{})

	c, w := newUploadContext(t, "/students/bulk-upload", "class1", nil)
	handler.BulkRoster(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionHandlerBulkRosterTooLarge(t *testing.T) {
	handler := NewIngestionHandler(&ingestionServiceMock{}, config.IngestionConfig{MaxRosterSizeBytes: 4})

	c, w := newUploadContext(t, "/students/bulk-upload", "class1", []byte("more-than-four-bytes"))
	handler.BulkRoster(c)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestionHandlerBulkPhotos(t *testing.T) {
	mockSvc := &ingestionServiceMock{
		photoSummary: &ingest.PhotoSummary{Total: 2, Uploaded: 2},
	}
	handler := NewIngestionHandler(mockSvc, config.IngestionConfig{})

	c, w := newUploadContext(t, "/students/bulk-photo-upload", "class1", []byte("zip-bytes"))
	handler.BulkPhotos(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school1", mockSvc.gotSchoolID)
	assert.Equal(t, []byte("zip-bytes"), mockSvc.gotData)
}

func TestIngestionHandlerBulkPhotosServiceError(t *testing.T) {
	mockSvc := &ingestionServiceMock{
		photoErr: appErrors.Clone(appErrors.ErrNotFound, "class not found"),
	}
	handler := NewIngestionHandler(mockSvc, config.IngestionConfig{})

	c, w := newUploadContext(t, "/students/bulk-photo-upload", "missing", []byte("zip-bytes"))
	handler.BulkPhotos(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
