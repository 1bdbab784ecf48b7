package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
)

type memoryStore struct {
	mu        sync.Mutex
	students  map[string]models.Student // key: classID + "/" + rollNumber
	images    map[string]string         // studentID -> url
	upsertErr map[string]error          // rollNumber -> forced error
	imageErr  map[string]error          // studentID -> forced error
	nextID    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		students:  make(map[string]models.Student),
		images:    make(map[string]string),
		upsertErr: make(map[string]error),
		imageErr:  make(map[string]error),
	}
}

func (m *memoryStore) Upsert(_ context.Context, upsert models.StudentUpsert) (*models.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.upsertErr[upsert.RollNumber]; err != nil {
		return nil, err
	}

	key := upsert.ClassID + "/" + upsert.RollNumber
	existing, ok := m.students[key]
	if ok {
		existing.Name = upsert.Name
		existing.DOB = upsert.DOB
		existing.Gender = upsert.Gender
		m.students[key] = existing
		return &models.UpsertResult{Student: existing, Created: false}, nil
	}

	m.nextID++
	student := models.Student{
		ID:         string(rune('a' + m.nextID)),
		SchoolID:   upsert.SchoolID,
		ClassID:    upsert.ClassID,
		RollNumber: upsert.RollNumber,
		Name:       upsert.Name,
		DOB:        upsert.DOB,
		Gender:     upsert.Gender,
		Active:     true,
	}
	m.students[key] = student
	return &models.UpsertResult{Student: student, Created: true}, nil
}

func (m *memoryStore) FindByClass(_ context.Context, classID string) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Student
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateProfileImage(_ context.Context, studentID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.imageErr[studentID]; err != nil {
		return err
	}
	m.images[studentID] = url
	return nil
}

func TestRunRosterEveryRowHasOutcome(t *testing.T) {
	store := newMemoryStore()
	rows := []RosterRow{
		{Index: 2, Name: "Alice", RollNumber: "1"},
		{Index: 3, Name: "", RollNumber: "2"},
		{Index: 4, Name: "Carol", RollNumber: "3", DOB: "bogus"},
		{Index: 5, Name: "Dan", RollNumber: "4", Gender: "female"},
	}

	summary := RunRoster(context.Background(), store, zap.NewNop(), "school1", "class1", rows)

	assert.Equal(t, len(rows), summary.Total)
	assert.Len(t, summary.Outcomes, len(rows))
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 2, summary.SkippedCount)
	assert.Equal(t, 0, summary.FailedCount)
}

func TestRunRosterLastRowWinsOnDuplicateRoll(t *testing.T) {
	store := newMemoryStore()
	rows := []RosterRow{
		{Index: 2, Name: "A", RollNumber: "1"},
		{Index: 3, Name: "B", RollNumber: "1"},
	}

	summary := RunRoster(context.Background(), store, zap.NewNop(), "school1", "class1", rows)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.SkippedCount)
	assert.Len(t, summary.Outcomes, 2)
	assert.Equal(t, RowSuperseded, summary.Outcomes[0].Status)
	assert.Equal(t, RowCreated, summary.Outcomes[1].Status)

	students, err := store.FindByClass(context.Background(), "class1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "B", students[0].Name)
}

func TestRunRosterIdempotentRerun(t *testing.T) {
	store := newMemoryStore()
	rows := []RosterRow{
		{Index: 2, Name: "Alice", RollNumber: "1"},
		{Index: 3, Name: "Bob", RollNumber: "2"},
		{Index: 4, Name: "Carol", RollNumber: "3"},
	}

	first := RunRoster(context.Background(), store, zap.NewNop(), "school1", "class1", rows)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.Updated)

	second := RunRoster(context.Background(), store, zap.NewNop(), "school1", "class1", rows)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)

	students, err := store.FindByClass(context.Background(), "class1")
	require.NoError(t, err)
	assert.Len(t, students, 3)
}

func TestRunRosterUpsertFailureDoesNotAbortBatch(t *testing.T) {
	store := newMemoryStore()
	store.upsertErr["2"] = errors.New("connection reset")
	rows := []RosterRow{
		{Index: 2, Name: "Alice", RollNumber: "1"},
		{Index: 3, Name: "Bob", RollNumber: "2"},
		{Index: 4, Name: "Carol", RollNumber: "3"},
	}

	summary := RunRoster(context.Background(), store, zap.NewNop(), "school1", "class1", rows)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Len(t, summary.Outcomes, 3)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].Row)
	assert.Equal(t, ReasonPersistFailed, summary.Errors[0].Reason)
}

func TestValidateRowFieldReasons(t *testing.T) {
	cases := []struct {
		name   string
		row    RosterRow
		reason string
	}{
		{"missing name", RosterRow{RollNumber: "1"}, ReasonMissingName},
		{"missing roll", RosterRow{Name: "A"}, ReasonMissingRollNumber},
		{"bad dob", RosterRow{Name: "A", RollNumber: "1", DOB: "31-12-2010"}, ReasonInvalidDOB},
		{"bad gender", RosterRow{Name: "A", RollNumber: "1", Gender: "X"}, ReasonInvalidGender},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft, reason := ValidateRow(tc.row, "s", "c")
			assert.Nil(t, draft)
			assert.Equal(t, tc.reason, reason)
		})
	}

	draft, reason := ValidateRow(RosterRow{Name: "A", RollNumber: "1", DOB: "2010-12-31", Gender: "male"}, "s", "c")
	require.Empty(t, reason)
	require.NotNil(t, draft)
	assert.Equal(t, models.GenderMale, *draft.Gender)
	assert.Equal(t, "2010-12-31", draft.DOB.Format("2006-01-02"))
}
