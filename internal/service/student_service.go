package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
	"github.com/attendly/attendly-api/pkg/storage"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByClass(ctx context.Context, classID string) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Upsert(ctx context.Context, upsert models.StudentUpsert) (*models.UpsertResult, error)
	UpdateProfileImage(ctx context.Context, studentID, url string) error
	Deactivate(ctx context.Context, id string) error
}

type embeddingClient interface {
	GenerateEmbedding(ctx context.Context, studentID, classID, imageURL string) error
}

// CreateStudentRequest is the payload for registering a single student.
type CreateStudentRequest struct {
	ClassID    string         `json:"class_id" validate:"required"`
	RollNumber string         `json:"roll_number" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	DOB        *time.Time     `json:"dob"`
	Gender     *models.Gender `json:"gender"`
}

// UpdateStudentRequest is the payload for updating a student.
type UpdateStudentRequest struct {
	RollNumber string         `json:"roll_number" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	DOB        *time.Time     `json:"dob"`
	Gender     *models.Gender `json:"gender"`
	Active     *bool          `json:"active"`
}

// StudentService handles student management including profile photos.
type StudentService struct {
	repo        studentRepository
	store       storage.AssetStore
	recognition embeddingClient
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, store storage.AssetStore, recognition embeddingClient, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, store: store, recognition: recognition, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return students, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student. The (class, roll number) pair is the natural
// key, so the single-create path goes through the same upsert the roster
// import uses; creating an existing roll is a conflict.
func (s *StudentService) Create(ctx context.Context, schoolID string, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create student payload")
	}
	if req.Gender != nil && !req.Gender.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid gender value")
	}

	result, err := s.repo.Upsert(ctx, models.StudentUpsert{
		SchoolID:   schoolID,
		ClassID:    req.ClassID,
		RollNumber: req.RollNumber,
		Name:       req.Name,
		DOB:        req.DOB,
		Gender:     req.Gender,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	if !result.Created {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already exists in this class")
	}
	return &result.Student, nil
}

// Update modifies a student's attributes.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update student payload")
	}
	if req.Gender != nil && !req.Gender.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid gender value")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.RollNumber = req.RollNumber
	student.Name = req.Name
	student.DOB = req.DOB
	student.Gender = req.Gender
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// SetPhoto uploads a profile photo for a student, persists its URL and asks
// the recognition service to index it.
func (s *StudentService) SetPhoto(ctx context.Context, id string, data []byte) (*models.Student, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "photo payload is empty")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	folder := PhotoFolder(student.SchoolID, student.ClassID)
	url, err := s.store.UploadImage(ctx, data, folder, student.RollNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamStorage.Code, appErrors.ErrUpstreamStorage.Status, "failed to upload photo")
	}

	if err := s.repo.UpdateProfileImage(ctx, student.ID, url); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist photo url")
	}
	student.ProfileImageURL = &url

	if s.recognition != nil {
		if err := s.recognition.GenerateEmbedding(ctx, student.ID, student.ClassID, url); err != nil {
			// Indexing is retried on the next recognition run; the photo itself is saved.
			s.logger.Warn("failed to index student photo",
				zap.String("student_id", student.ID),
				zap.Error(err),
			)
		}
	}

	return student, nil
}

// Deactivate marks a student inactive and removes the stored photo
// best-effort.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}

	if student.ProfileImageURL != nil {
		if publicID := storage.PublicIDFromURL(*student.ProfileImageURL); publicID != "" {
			if err := s.store.Delete(ctx, publicID); err != nil {
				s.logger.Warn("failed to delete student photo",
					zap.String("student_id", id),
					zap.String("public_id", publicID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// PhotoFolder is the asset-store folder that holds a class's student face
// images.
func PhotoFolder(schoolID, classID string) string {
	return fmt.Sprintf("%s/students/%s/face-images", schoolID, classID)
}
