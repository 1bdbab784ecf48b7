package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "P"
	AttendanceAbsent  AttendanceStatus = "A"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// AttendanceSource records who produced a mark.
type AttendanceSource string

const (
	SourceSystem  AttendanceSource = "SYSTEM"
	SourceTeacher AttendanceSource = "TEACHER"
)

// SessionStatus tracks the review lifecycle of an attendance session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionInReview  SessionStatus = "IN_REVIEW"
	SessionFinalized SessionStatus = "FINALIZED"
)

// AttendanceSession is one attendance-taking event: per class per day.
type AttendanceSession struct {
	ID        string        `db:"id" json:"id"`
	SchoolID  string        `db:"school_id" json:"school_id"`
	ClassID   string        `db:"class_id" json:"class_id"`
	TeacherID string        `db:"teacher_id" json:"teacher_id"`
	Date      time.Time     `db:"date" json:"date"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord marks one student within one session.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	SessionID  string           `db:"session_id" json:"session_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Source     AttendanceSource `db:"source" json:"source"`
	Confidence *float64         `db:"confidence" json:"confidence,omitempty"`
	Edited     bool             `db:"edited" json:"edited"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordDetail extends a record with student metadata for listings.
type AttendanceRecordDetail struct {
	AttendanceRecord
	RollNumber  string `db:"roll_number" json:"roll_number"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceMark is a single (student, status) pair in a bulk marking request.
type AttendanceMark struct {
	StudentID  string           `json:"student_id" validate:"required"`
	Status     AttendanceStatus `json:"status" validate:"required"`
	Confidence *float64         `json:"confidence,omitempty"`
}

// AttendanceSummary aggregates a student's marks over a date range.
type AttendanceSummary struct {
	StudentID string  `json:"student_id"`
	Present   int     `json:"present"`
	Absent    int     `json:"absent"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// AttendanceReportRow is one line of a class attendance report export.
type AttendanceReportRow struct {
	Date        time.Time        `db:"date" json:"date"`
	RollNumber  string           `db:"roll_number" json:"roll_number"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Source      AttendanceSource `db:"source" json:"source"`
}

// SessionFilter scopes attendance session listings.
type SessionFilter struct {
	ClassID  string
	SchoolID string
	DateFrom *time.Time
	DateTo   *time.Time
	Status   *SessionStatus
	Page     int
	PageSize int
}
