package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentColumns() []string {
	return []string{"id", "school_id", "class_id", "roll_number", "name", "dob", "gender", "profile_image_url", "active", "created_at", "updated_at"}
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentColumns()).
		AddRow("1", "school1", "class1", "7", "Student", time.Now(), "M", nil, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT s.id, s.school_id, s.class_id, s.roll_number, s.name, s.dob, s.gender, s.profile_image_url, s.active, s.created_at, s.updated_at").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertCreates(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(append(studentColumns(), "created")).
		AddRow("1", "school1", "class1", "7", "Alice", nil, nil, nil, true, time.Now(), time.Now(), true)
	mock.ExpectQuery("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "school1", "class1", "7", "Alice", nil, nil, sqlmock.AnyArg()).
		WillReturnRows(rows)

	result, err := repo.Upsert(context.Background(), models.StudentUpsert{SchoolID: "school1", ClassID: "class1", RollNumber: "7", Name: "Alice"})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "7", result.Student.RollNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertUpdatesOnConflict(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(append(studentColumns(), "created")).
		AddRow("1", "school1", "class1", "7", "Alice Renamed", nil, nil, nil, true, time.Now(), time.Now(), false)
	mock.ExpectQuery("INSERT INTO students").
		WillReturnRows(rows)

	result, err := repo.Upsert(context.Background(), models.StudentUpsert{SchoolID: "school1", ClassID: "class1", RollNumber: "7", Name: "Alice Renamed"})
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "Alice Renamed", result.Student.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByClass(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentColumns()).
		AddRow("1", "school1", "class1", "1", "Alice", nil, nil, nil, true, time.Now(), time.Now()).
		AddRow("2", "school1", "class1", "2", "Bob", nil, nil, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE class_id = $1 AND active = true ORDER BY roll_number")).
		WithArgs("class1").
		WillReturnRows(rows)

	students, err := repo.FindByClass(context.Background(), "class1")
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateProfileImage(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET profile_image_url = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("1", "https://assets.example/7.jpg", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProfileImage(context.Background(), "1", "https://assets.example/7.jpg")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
