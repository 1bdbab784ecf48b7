package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
)

type attendanceRepository interface {
	CreateSession(ctx context.Context, session *models.AttendanceSession) error
	FindSessionByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	FindSessionByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpsertRecords(ctx context.Context, sessionID string, source models.AttendanceSource, marks []models.AttendanceMark) error
	ListRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error)
	SummaryByClass(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceSummary, error)
}

type attendanceStudentRepository interface {
	FindByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type recognizeClient interface {
	Recognize(ctx context.Context, classID string, imageURLs []string) ([]string, error)
}

// CreateSessionRequest opens an attendance session for a class on a date.
type CreateSessionRequest struct {
	ClassID string    `json:"class_id" validate:"required"`
	Date    time.Time `json:"date" validate:"required"`
}

// MarkAttendanceRequest is a bulk manual marking payload.
type MarkAttendanceRequest struct {
	Marks []models.AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// RecognizeRequest submits classroom photos for automatic marking.
type RecognizeRequest struct {
	ImageURLs []string `json:"image_urls" validate:"required,min=1,dive,url"`
}

// AttendanceService coordinates attendance sessions, manual marking and
// recognition-driven marking.
type AttendanceService struct {
	repo        attendanceRepository
	students    attendanceStudentRepository
	recognition recognizeClient
	cache       *redis.Client
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service. The cache client is
// optional; without it summaries are always computed from the database.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentRepository, recognition recognizeClient, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AttendanceService{
		repo:        repo,
		students:    students,
		recognition: recognition,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

// CreateSession opens a session. Only one session may exist per class per day.
func (s *AttendanceService) CreateSession(ctx context.Context, schoolID, teacherID string, req CreateSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create session payload")
	}

	day := req.Date.UTC().Truncate(24 * time.Hour)

	if existing, err := s.repo.FindSessionByClassAndDate(ctx, req.ClassID, day); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session already exists for this class and date")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing session")
	}

	session := &models.AttendanceSession{
		SchoolID:  schoolID,
		ClassID:   req.ClassID,
		TeacherID: teacherID,
		Date:      day,
		Status:    models.SessionPending,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// GetSession returns a session with its records.
func (s *AttendanceService) GetSession(ctx context.Context, id string) (*models.AttendanceSession, []models.AttendanceRecordDetail, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	records, err := s.repo.ListRecords(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session records")
	}
	return session, records, nil
}

// ListSessions returns sessions with pagination metadata.
func (s *AttendanceService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, *models.Pagination, error) {
	sessions, total, err := s.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return sessions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Mark applies a batch of teacher marks to a session. Finalized sessions are
// immutable.
func (s *AttendanceService) Mark(ctx context.Context, sessionID string, req MarkAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	for _, mark := range req.Marks {
		if !mark.Status.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", mark.Status))
		}
	}

	session, err := s.loadMutableSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertRecords(ctx, session.ID, models.SourceTeacher, req.Marks); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save marks")
	}

	if session.Status == models.SessionPending {
		if err := s.repo.UpdateSessionStatus(ctx, session.ID, models.SessionInReview); err != nil {
			s.logger.Warn("failed to advance session status", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	s.invalidateSummary(ctx, session.ClassID)
	return nil
}

// RecognizeAndMark sends classroom photos to the recognition service and
// marks recognized students present and the rest of the roster absent, with
// SYSTEM as the source. The teacher reviews and finalizes afterwards.
func (s *AttendanceService) RecognizeAndMark(ctx context.Context, sessionID string, req RecognizeRequest) ([]models.AttendanceRecordDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recognize payload")
	}

	session, err := s.loadMutableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	presentIDs, err := s.recognition.Recognize(ctx, session.ClassID, req.ImageURLs)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = true
	}

	roster, err := s.students.FindByClass(ctx, session.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	marks := make([]models.AttendanceMark, 0, len(roster))
	for _, student := range roster {
		status := models.AttendanceAbsent
		if present[student.ID] {
			status = models.AttendancePresent
		}
		marks = append(marks, models.AttendanceMark{StudentID: student.ID, Status: status})
	}

	if err := s.repo.UpsertRecords(ctx, session.ID, models.SourceSystem, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save recognition marks")
	}

	if err := s.repo.UpdateSessionStatus(ctx, session.ID, models.SessionInReview); err != nil {
		s.logger.Warn("failed to advance session status", zap.String("session_id", session.ID), zap.Error(err))
	}

	s.invalidateSummary(ctx, session.ClassID)

	records, err := s.repo.ListRecords(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session records")
	}
	return records, nil
}

// Finalize locks a session against further marking.
func (s *AttendanceService) Finalize(ctx context.Context, sessionID string) error {
	session, err := s.loadMutableSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSessionStatus(ctx, session.ID, models.SessionFinalized); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize session")
	}
	return nil
}

// ClassSummary aggregates per-student attendance for a class over a range,
// served from cache when fresh.
func (s *AttendanceService) ClassSummary(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceSummary, error) {
	key := summaryCacheKey(classID, from, to)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached []models.AttendanceSummary
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	summaries, err := s.repo.SummaryByClass(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute summary")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(summaries); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache summary", zap.String("class_id", classID), zap.Error(err))
			}
		}
	}
	return summaries, nil
}

func (s *AttendanceService) loadMutableSession(ctx context.Context, sessionID string) (*models.AttendanceSession, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status == models.SessionFinalized {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is finalized")
	}
	return session, nil
}

func (s *AttendanceService) invalidateSummary(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, "attendance:summary:"+classID+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("failed to evict summary cache", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
}

func summaryCacheKey(classID string, from, to time.Time) string {
	return fmt.Sprintf("attendance:summary:%s:%s:%s", classID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
