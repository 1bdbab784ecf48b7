package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/attendly/attendly-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.roll_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":        "s.name",
		"roll_number": "s.roll_number",
		"created_at":  "s.created_at",
	}
	if sortBy == "" {
		sortBy = "roll_number"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.roll_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.school_id, s.class_id, s.roll_number, s.name, s.dob, s.gender, s.profile_image_url, s.active, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, school_id, class_id, roll_number, name, dob, gender, profile_image_url, active, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByClass returns every active student in a class ordered by roll number.
func (r *StudentRepository) FindByClass(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT id, school_id, class_id, roll_number, name, dob, gender, profile_image_url, active, created_at, updated_at
        FROM students WHERE class_id = $1 AND active = true ORDER BY roll_number`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("find students by class: %w", err)
	}
	return students, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, school_id, class_id, roll_number, name, dob, gender, profile_image_url, active, created_at, updated_at)
        VALUES (:id, :school_id, :class_id, :roll_number, :name, :dob, :gender, :profile_image_url, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET roll_number = :roll_number, name = :name, dob = :dob, gender = :gender, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Upsert inserts or updates a student keyed on (class_id, roll_number) in a
// single statement, so each roster row commits independently of the rest of
// the batch. The xmax system column distinguishes a fresh insert from a
// conflict update.
func (r *StudentRepository) Upsert(ctx context.Context, upsert models.StudentUpsert) (*models.UpsertResult, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO students (id, school_id, class_id, roll_number, name, dob, gender, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $8)
        ON CONFLICT (class_id, roll_number) DO UPDATE
        SET name = EXCLUDED.name, dob = EXCLUDED.dob, gender = EXCLUDED.gender, active = true, updated_at = EXCLUDED.updated_at
        RETURNING id, school_id, class_id, roll_number, name, dob, gender, profile_image_url, active, created_at, updated_at, (xmax = 0) AS created`

	var row struct {
		models.Student
		Created bool `db:"created"`
	}
	err := r.db.GetContext(ctx, &row, query,
		uuid.NewString(), upsert.SchoolID, upsert.ClassID, upsert.RollNumber,
		upsert.Name, upsert.DOB, upsert.Gender, now)
	if err != nil {
		return nil, fmt.Errorf("upsert student: %w", err)
	}
	return &models.UpsertResult{Student: row.Student, Created: row.Created}, nil
}

// UpdateProfileImage stores the uploaded photo URL for a student.
func (r *StudentRepository) UpdateProfileImage(ctx context.Context, studentID, url string) error {
	const query = `UPDATE students SET profile_image_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update profile image: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
