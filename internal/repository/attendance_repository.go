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

// AttendanceRepository manages attendance sessions and their records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CreateSession persists a new attendance session.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionPending
	}

	const query = `INSERT INTO attendance_sessions (id, school_id, class_id, teacher_id, date, status, created_at, updated_at)
        VALUES (:id, :school_id, :class_id, :teacher_id, :date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create attendance session: %w", err)
	}
	return nil
}

// FindSessionByID returns a session by identifier.
func (r *AttendanceRepository) FindSessionByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	const query = `SELECT id, school_id, class_id, teacher_id, date, status, created_at, updated_at FROM attendance_sessions WHERE id = $1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindSessionByClassAndDate returns the session for a class on a calendar day.
// Sessions are unique per (class_id, date).
func (r *AttendanceRepository) FindSessionByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error) {
	const query = `SELECT id, school_id, class_id, teacher_id, date, status, created_at, updated_at FROM attendance_sessions WHERE class_id = $1 AND date = $2 LIMIT 1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, classID, date); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns sessions matching the filter with a total count.
func (r *AttendanceRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error) {
	base := "FROM attendance_sessions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT id, school_id, class_id, teacher_id, date, status, created_at, updated_at %s ORDER BY date DESC LIMIT %d OFFSET %d", base, size, offset)
	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance sessions: %w", err)
	}
	return sessions, total, nil
}

// UpdateSessionStatus transitions a session through its review lifecycle.
func (r *AttendanceRepository) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE attendance_sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// UpsertRecords writes a batch of marks for a session in one transaction.
// A mark for a student who already has a record in the session replaces the
// earlier status and flags the record as edited.
func (r *AttendanceRepository) UpsertRecords(ctx context.Context, sessionID string, source models.AttendanceSource, marks []models.AttendanceMark) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert records: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO attendance_records (id, session_id, student_id, status, source, confidence, edited, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, false, $7, $7)
        ON CONFLICT (session_id, student_id) DO UPDATE
        SET status = EXCLUDED.status, source = EXCLUDED.source, confidence = EXCLUDED.confidence, edited = true, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for _, mark := range marks {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), sessionID, mark.StudentID, mark.Status, source, mark.Confidence, now); err != nil {
			return fmt.Errorf("upsert attendance record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert records: %w", err)
	}
	return nil
}

// ListRecords returns all records of a session joined with student metadata.
func (r *AttendanceRepository) ListRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	const query = `SELECT r.id, r.session_id, r.student_id, r.status, r.source, r.confidence, r.edited, r.created_at, r.updated_at,
        s.roll_number, s.name AS student_name
        FROM attendance_records r
        JOIN students s ON s.id = r.student_id
        WHERE r.session_id = $1
        ORDER BY s.roll_number`
	var records []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// ReportRows returns the flat attendance export rows for a class over a range.
func (r *AttendanceRepository) ReportRows(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceReportRow, error) {
	const query = `SELECT sess.date, s.roll_number, s.name AS student_name, r.status, r.source
        FROM attendance_records r
        JOIN attendance_sessions sess ON sess.id = r.session_id
        JOIN students s ON s.id = r.student_id
        WHERE sess.class_id = $1 AND sess.date BETWEEN $2 AND $3
        ORDER BY sess.date, s.roll_number`
	var rows []models.AttendanceReportRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("attendance report rows: %w", err)
	}
	return rows, nil
}

// SummaryByClass aggregates per-student present/absent counts over a range.
func (r *AttendanceRepository) SummaryByClass(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceSummary, error) {
	const query = `SELECT r.student_id,
        COUNT(*) FILTER (WHERE r.status = 'P') AS present,
        COUNT(*) FILTER (WHERE r.status = 'A') AS absent,
        COUNT(*) AS total
        FROM attendance_records r
        JOIN attendance_sessions sess ON sess.id = r.session_id
        WHERE sess.class_id = $1 AND sess.date BETWEEN $2 AND $3
        GROUP BY r.student_id`

	var rows []struct {
		StudentID string `db:"student_id"`
		Present   int    `db:"present"`
		Absent    int    `db:"absent"`
		Total     int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}

	summaries := make([]models.AttendanceSummary, len(rows))
	for i, row := range rows {
		summary := models.AttendanceSummary{StudentID: row.StudentID, Present: row.Present, Absent: row.Absent, Total: row.Total}
		if row.Total > 0 {
			summary.Percent = float64(row.Present) / float64(row.Total) * 100
		}
		summaries[i] = summary
	}
	return summaries, nil
}
