package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
)

type mockAttendanceRepo struct {
	sessions map[string]*models.AttendanceSession
	records  map[string]map[string]models.AttendanceRecord // sessionID -> studentID -> record
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{
		sessions: make(map[string]*models.AttendanceSession),
		records:  make(map[string]map[string]models.AttendanceRecord),
	}
}

func (m *mockAttendanceRepo) CreateSession(_ context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = "sess-" + session.ClassID + "-" + session.Date.Format("20060102")
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockAttendanceRepo) FindSessionByID(_ context.Context, id string) (*models.AttendanceSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

func (m *mockAttendanceRepo) FindSessionByClassAndDate(_ context.Context, classID string, date time.Time) (*models.AttendanceSession, error) {
	for _, session := range m.sessions {
		if session.ClassID == classID && session.Date.Equal(date) {
			return session, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) ListSessions(_ context.Context, _ models.SessionFilter) ([]models.AttendanceSession, int, error) {
	out := make([]models.AttendanceSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, *session)
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) UpdateSessionStatus(_ context.Context, id string, status models.SessionStatus) error {
	if session, ok := m.sessions[id]; ok {
		session.Status = status
	}
	return nil
}

func (m *mockAttendanceRepo) UpsertRecords(_ context.Context, sessionID string, source models.AttendanceSource, marks []models.AttendanceMark) error {
	if m.records[sessionID] == nil {
		m.records[sessionID] = make(map[string]models.AttendanceRecord)
	}
	for _, mark := range marks {
		m.records[sessionID][mark.StudentID] = models.AttendanceRecord{
			SessionID:  sessionID,
			StudentID:  mark.StudentID,
			Status:     mark.Status,
			Source:     source,
			Confidence: mark.Confidence,
		}
	}
	return nil
}

func (m *mockAttendanceRepo) ListRecords(_ context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	var out []models.AttendanceRecordDetail
	for _, record := range m.records[sessionID] {
		out = append(out, models.AttendanceRecordDetail{AttendanceRecord: record})
	}
	return out, nil
}

func (m *mockAttendanceRepo) SummaryByClass(_ context.Context, _ string, _, _ time.Time) ([]models.AttendanceSummary, error) {
	return []models.AttendanceSummary{{StudentID: "st-1", Present: 9, Absent: 1, Total: 10, Percent: 90}}, nil
}

type mockClassStudents struct {
	students []models.Student
}

func (m *mockClassStudents) FindByClass(_ context.Context, _ string) ([]models.Student, error) {
	return m.students, nil
}

type mockRecognizer struct {
	presentIDs []string
	err        error
	gotURLs    []string
}

func (m *mockRecognizer) Recognize(_ context.Context, _ string, imageURLs []string) ([]string, error) {
	m.gotURLs = imageURLs
	if m.err != nil {
		return nil, m.err
	}
	return m.presentIDs, nil
}

func newAttendanceFixture(students []models.Student, recognizer *mockRecognizer) (*AttendanceService, *mockAttendanceRepo) {
	repo := newMockAttendanceRepo()
	svc := NewAttendanceService(repo, &mockClassStudents{students: students}, recognizer, nil, time.Minute, validator.New(), zap.NewNop())
	return svc, repo
}

func TestCreateSessionRejectsDuplicateDay(t *testing.T) {
	svc, _ := newAttendanceFixture(nil, nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateSession(context.Background(), "school1", "t1", CreateSessionRequest{ClassID: "class1", Date: day})
	require.NoError(t, err)

	_, err = svc.CreateSession(context.Background(), "school1", "t1", CreateSessionRequest{ClassID: "class1", Date: day})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRecognizeAndMarkSplitsPresentAbsent(t *testing.T) {
	students := []models.Student{
		{ID: "st-1", ClassID: "class1", RollNumber: "1"},
		{ID: "st-2", ClassID: "class1", RollNumber: "2"},
		{ID: "st-3", ClassID: "class1", RollNumber: "3"},
	}
	recognizer := &mockRecognizer{presentIDs: []string{"st-1", "st-3"}}
	svc, repo := newAttendanceFixture(students, recognizer)

	session, err := svc.CreateSession(context.Background(), "school1", "t1", CreateSessionRequest{ClassID: "class1", Date: time.Now()})
	require.NoError(t, err)

	records, err := svc.RecognizeAndMark(context.Background(), session.ID, RecognizeRequest{ImageURLs: []string{"https://img.example/a.jpg"}})
	require.NoError(t, err)
	require.Len(t, records, 3)

	byStudent := make(map[string]models.AttendanceStatus)
	for _, record := range records {
		byStudent[record.StudentID] = record.Status
		assert.Equal(t, models.SourceSystem, record.Source)
	}
	assert.Equal(t, models.AttendancePresent, byStudent["st-1"])
	assert.Equal(t, models.AttendanceAbsent, byStudent["st-2"])
	assert.Equal(t, models.AttendancePresent, byStudent["st-3"])

	assert.Equal(t, models.SessionInReview, repo.sessions[session.ID].Status)
}

func TestMarkRejectsFinalizedSession(t *testing.T) {
	svc, repo := newAttendanceFixture(nil, nil)
	session, err := svc.CreateSession(context.Background(), "school1", "t1", CreateSessionRequest{ClassID: "class1", Date: time.Now()})
	require.NoError(t, err)
	repo.sessions[session.ID].Status = models.SessionFinalized

	err = svc.Mark(context.Background(), session.ID, MarkAttendanceRequest{Marks: []models.AttendanceMark{{StudentID: "st-1", Status: models.AttendancePresent}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMarkRejectsInvalidStatus(t *testing.T) {
	svc, _ := newAttendanceFixture(nil, nil)
	session, err := svc.CreateSession(context.Background(), "school1", "t1", CreateSessionRequest{ClassID: "class1", Date: time.Now()})
	require.NoError(t, err)

	err = svc.Mark(context.Background(), session.ID, MarkAttendanceRequest{Marks: []models.AttendanceMark{{StudentID: "st-1", Status: "X"}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassSummaryWithoutCache(t *testing.T) {
	svc, _ := newAttendanceFixture(nil, nil)

	summaries, err := svc.ClassSummary(context.Background(), "class1", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 90.0, summaries[0].Percent)
}
