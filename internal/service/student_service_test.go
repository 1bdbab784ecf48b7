package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
)

type mockStudentRepo struct {
	students  map[string]*models.Student
	upserts   []models.StudentUpsert
	created   bool
	deleted   []string
	imageURLs map[string]string
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*models.Student), imageURLs: make(map[string]string), created: true}
}

func (m *mockStudentRepo) List(_ context.Context, _ models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentRepo) FindByClass(_ context.Context, classID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *models.Student) error {
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Upsert(_ context.Context, upsert models.StudentUpsert) (*models.UpsertResult, error) {
	m.upserts = append(m.upserts, upsert)
	student := models.Student{
		ID:         "st-" + upsert.RollNumber,
		SchoolID:   upsert.SchoolID,
		ClassID:    upsert.ClassID,
		RollNumber: upsert.RollNumber,
		Name:       upsert.Name,
		Active:     true,
	}
	m.students[student.ID] = &student
	return &models.UpsertResult{Student: student, Created: m.created}, nil
}

func (m *mockStudentRepo) UpdateProfileImage(_ context.Context, studentID, url string) error {
	m.imageURLs[studentID] = url
	return nil
}

func (m *mockStudentRepo) Deactivate(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if student, ok := m.students[id]; ok {
		student.Active = false
	}
	return nil
}

type mockEmbedder struct {
	indexed []string
	err     error
}

func (m *mockEmbedder) GenerateEmbedding(_ context.Context, studentID, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.indexed = append(m.indexed, studentID)
	return nil
}

func TestStudentServiceCreateConflict(t *testing.T) {
	repo := newMockStudentRepo()
	repo.created = false // upsert hit an existing roll number
	svc := NewStudentService(repo, &stubAssetStore{}, &mockEmbedder{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "school1", CreateStudentRequest{ClassID: "class1", RollNumber: "7", Name: "Alice"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateSuccess(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, &stubAssetStore{}, &mockEmbedder{}, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), "school1", CreateStudentRequest{ClassID: "class1", RollNumber: "7", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "7", student.RollNumber)
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, "school1", repo.upserts[0].SchoolID)
}

func TestStudentServiceSetPhoto(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["st-7"] = &models.Student{ID: "st-7", SchoolID: "school1", ClassID: "class1", RollNumber: "7", Name: "Alice", Active: true}
	store := &stubAssetStore{}
	embedder := &mockEmbedder{}
	svc := NewStudentService(repo, store, embedder, validator.New(), zap.NewNop())

	student, err := svc.SetPhoto(context.Background(), "st-7", []byte("jpeg"))
	require.NoError(t, err)

	require.NotNil(t, student.ProfileImageURL)
	assert.Contains(t, *student.ProfileImageURL, "school1/students/class1/face-images")
	assert.Equal(t, *student.ProfileImageURL, repo.imageURLs["st-7"])
	assert.Equal(t, []string{"st-7"}, embedder.indexed)
}

func TestStudentServiceSetPhotoIndexFailureIsNotFatal(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["st-7"] = &models.Student{ID: "st-7", SchoolID: "school1", ClassID: "class1", RollNumber: "7", Active: true}
	embedder := &mockEmbedder{err: assert.AnError}
	svc := NewStudentService(repo, &stubAssetStore{}, embedder, validator.New(), zap.NewNop())

	student, err := svc.SetPhoto(context.Background(), "st-7", []byte("jpeg"))
	require.NoError(t, err)
	assert.NotNil(t, student.ProfileImageURL)
}

func TestStudentServiceDeactivateRemovesPhoto(t *testing.T) {
	repo := newMockStudentRepo()
	url := "https://res.cloudinary.com/demo/image/upload/v12345/school1/students/class1/face-images/7.jpg"
	repo.students["st-7"] = &models.Student{ID: "st-7", ProfileImageURL: &url, Active: true}
	svc := NewStudentService(repo, &stubAssetStore{}, &mockEmbedder{}, validator.New(), zap.NewNop())

	err := svc.Deactivate(context.Background(), "st-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"st-7"}, repo.deleted)
	assert.False(t, repo.students["st-7"].Active)
}
