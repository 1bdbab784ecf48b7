package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/ingest"
	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
	"github.com/attendly/attendly-api/pkg/storage"
)

type ingestionClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// IngestionConfig tunes the bulk import pipelines.
type IngestionConfig struct {
	UploadConcurrency int
	UploadTimeout     time.Duration
}

// IngestionService runs the bulk roster and photo import pipelines. A fatal
// error (unknown class, unreadable file) rejects the request as a whole;
// after that point every row and every archive entry gets an individual
// outcome and the batch always finishes.
type IngestionService struct {
	students ingest.StudentStore
	classes  ingestionClassRepository
	store    storage.AssetStore
	metrics  *MetricsService
	logger   *zap.Logger
	config   IngestionConfig
}

// NewIngestionService constructs an IngestionService. Metrics may be nil.
func NewIngestionService(students ingest.StudentStore, classes ingestionClassRepository, store storage.AssetStore, metrics *MetricsService, logger *zap.Logger, config IngestionConfig) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{students: students, classes: classes, store: store, metrics: metrics, logger: logger, config: config}
}

// ImportRoster ingests a roster spreadsheet into a class. Each valid row is
// upserted on (class, roll number) independently; when the same roll number
// appears more than once the last row wins.
func (s *IngestionService) ImportRoster(ctx context.Context, schoolID, classID, filename string, data []byte) (*ingest.RosterSummary, error) {
	class, err := s.loadClass(ctx, schoolID, classID)
	if err != nil {
		return nil, err
	}

	rows, err := ingest.ParseRoster(data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	summary := ingest.RunRoster(ctx, s.students, s.logger, class.SchoolID, class.ID, rows)

	s.metrics.ObserveIngestBatch("roster", time.Since(start))
	s.metrics.ObserveRosterRows("created", summary.Created)
	s.metrics.ObserveRosterRows("updated", summary.Updated)
	s.metrics.ObserveRosterRows("skipped", summary.SkippedCount)
	s.metrics.ObserveRosterRows("failed", summary.FailedCount)

	s.archiveRosterCopy(ctx, class, filename, data)

	s.logger.Info("roster import finished",
		zap.String("class_id", class.ID),
		zap.Int("total", summary.Total),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.SkippedCount),
		zap.Int("failed", summary.FailedCount),
	)
	return &summary, nil
}

// ImportPhotos ingests a ZIP archive of student photos for a class. Filenames
// are matched to roll numbers, matched entries are uploaded with bounded
// parallelism, and each entry is reported exactly once.
func (s *IngestionService) ImportPhotos(ctx context.Context, schoolID, classID string, data []byte) (*ingest.PhotoSummary, error) {
	class, err := s.loadClass(ctx, schoolID, classID)
	if err != nil {
		return nil, err
	}

	entries, err := ingest.ReadArchive(data)
	if err != nil {
		return nil, err
	}

	students, err := s.students.FindByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	start := time.Now()
	matches := ingest.MatchArchive(entries, students)
	uploads := ingest.RunUploads(ctx, s.store, s.students, s.logger, ingest.UploadConfig{
		Folder:      PhotoFolder(class.SchoolID, class.ID),
		Concurrency: s.config.UploadConcurrency,
		Timeout:     s.config.UploadTimeout,
	}, matches)
	summary := ingest.BuildPhotoSummary(matches, uploads)

	s.metrics.ObserveIngestBatch("photos", time.Since(start))
	s.metrics.ObservePhotoEntries("uploaded", summary.Uploaded)
	s.metrics.ObservePhotoEntries("skipped", summary.SkippedCount)
	s.metrics.ObservePhotoEntries("failed", summary.FailedCount)

	s.logger.Info("photo import finished",
		zap.String("class_id", class.ID),
		zap.Int("total", summary.Total),
		zap.Int("uploaded", summary.Uploaded),
		zap.Int("skipped", summary.SkippedCount),
		zap.Int("failed", summary.FailedCount),
	)
	return &summary, nil
}

func (s *IngestionService) loadClass(ctx context.Context, schoolID, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another school")
	}
	return class, nil
}

// archiveRosterCopy keeps the uploaded spreadsheet in the asset store for
// auditing. The import result does not depend on it.
func (s *IngestionService) archiveRosterCopy(ctx context.Context, class *models.Class, filename string, data []byte) {
	publicID := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), filename)
	folder := fmt.Sprintf("%s/students/%s/rosters", class.SchoolID, class.ID)
	if _, err := s.store.UploadRaw(ctx, data, folder, publicID); err != nil {
		s.logger.Warn("failed to archive roster copy",
			zap.String("class_id", class.ID),
			zap.Error(err),
		)
	}
}
