package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendly/attendly-api/internal/service"
	"github.com/attendly/attendly-api/pkg/response"
)

// ReportHandler exposes attendance export endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Attendance godoc
// @Summary Export class attendance log
// @Description Streams the per-day attendance log of a class as CSV, XLSX or PDF
// @Tags Reports
// @Produce octet-stream
// @Param classId path string true "Class ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string false "csv, xlsx or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/attendance/{classId} [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))

	file, err := h.reports.AttendanceReport(c.Request.Context(), c.Param("classId"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	streamReport(c, file)
}

// Summary godoc
// @Summary Export class attendance summary
// @Description Streams the per-student aggregate attendance of a class as CSV, XLSX or PDF
// @Tags Reports
// @Produce octet-stream
// @Param classId path string true "Class ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string false "csv, xlsx or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/summary/{classId} [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))

	file, err := h.reports.SummaryReport(c.Request.Context(), c.Param("classId"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	streamReport(c, file)
}

func streamReport(c *gin.Context, file *service.ReportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}
