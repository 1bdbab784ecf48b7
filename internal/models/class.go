package models

import "time"

// Class represents a classroom: one standard/division pairing for a school year.
type Class struct {
	ID              string    `db:"id" json:"id"`
	SchoolID        string    `db:"school_id" json:"school_id"`
	EducationalYear string    `db:"educational_year" json:"educational_year"`
	Standard        string    `db:"standard" json:"standard"`
	Division        string    `db:"division" json:"division"`
	Name            string    `db:"name" json:"name"`
	ClassTeacherID  *string   `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with the class teacher's name for responses.
type ClassDetail struct {
	Class
	ClassTeacherName *string `db:"class_teacher_name" json:"class_teacher_name,omitempty"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	SchoolID        string
	EducationalYear string
	Standard        string
	Search          string
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}
