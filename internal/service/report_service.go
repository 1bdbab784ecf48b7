package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
	"github.com/attendly/attendly-api/pkg/export"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatPDF  ReportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportFormatCSV, ReportFormatXLSX, ReportFormatPDF:
		return true
	default:
		return false
	}
}

// ContentType returns the MIME type served for the format.
func (f ReportFormat) ContentType() string {
	switch f {
	case ReportFormatCSV:
		return "text/csv"
	case ReportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ReportFormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

type reportAttendanceRepository interface {
	ReportRows(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceReportRow, error)
	SummaryByClass(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceSummary, error)
}

type reportStudentRepository interface {
	FindByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportFile is a rendered report ready to stream to the client.
type ReportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService renders class attendance exports in the supported formats.
type ReportService struct {
	attendance reportAttendanceRepository
	students   reportStudentRepository
	csv        csvRenderer
	xlsx       xlsxRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewReportService constructs a ReportService. Nil renderers fall back to the
// package defaults.
func NewReportService(attendance reportAttendanceRepository, students reportStudentRepository, logger *zap.Logger, csv csvRenderer, xlsx xlsxRenderer, pdf pdfRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{attendance: attendance, students: students, csv: csv, xlsx: xlsx, pdf: pdf, logger: logger}
}

// AttendanceReport renders the per-day attendance log of a class over a range.
func (s *ReportService) AttendanceReport(ctx context.Context, classID string, from, to time.Time, format ReportFormat) (*ReportFile, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}

	rows, err := s.attendance.ReportRows(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report rows")
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Date":        row.Date.Format("2006-01-02"),
			"Roll Number": row.RollNumber,
			"Student":     row.StudentName,
			"Status":      string(row.Status),
			"Source":      string(row.Source),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Roll Number", "Student", "Status", "Source"},
		Rows:    dataRows,
	}

	title := fmt.Sprintf("Attendance %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return s.render(dataset, title, "attendance", format)
}

// SummaryReport renders the per-student aggregate attendance of a class.
func (s *ReportService) SummaryReport(ctx context.Context, classID string, from, to time.Time, format ReportFormat) (*ReportFile, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}

	summaries, err := s.attendance.SummaryByClass(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}

	roster, err := s.students.FindByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	byID := make(map[string]models.Student, len(roster))
	for _, student := range roster {
		byID[student.ID] = student
	}

	dataRows := make([]map[string]string, 0, len(summaries))
	for _, summary := range summaries {
		student := byID[summary.StudentID]
		dataRows = append(dataRows, map[string]string{
			"Roll Number":    student.RollNumber,
			"Student":        student.Name,
			"Present":        fmt.Sprintf("%d", summary.Present),
			"Absent":         fmt.Sprintf("%d", summary.Absent),
			"Total":          fmt.Sprintf("%d", summary.Total),
			"Attendance (%)": fmt.Sprintf("%.2f", summary.Percent),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Roll Number", "Student", "Present", "Absent", "Total", "Attendance (%)"},
		Rows:    dataRows,
	}

	title := fmt.Sprintf("Attendance Summary %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return s.render(dataset, title, "attendance_summary", format)
}

func (s *ReportService) render(dataset export.Dataset, title, stem string, format ReportFormat) (*ReportFile, error) {
	var payload []byte
	var err error
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, "Attendance")
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	filename := fmt.Sprintf("%s_%s.%s", stem, time.Now().UTC().Format("20060102_150405"), strings.ToLower(string(format)))
	return &ReportFile{
		Filename:    filename,
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}
