package models

import "time"

// Gender enumerates accepted student gender values.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "OTHER"
)

// Valid reports whether the gender is a supported value.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// Student represents a learner registered in a class. Roll numbers are unique
// within a class and join roster rows to photo filenames during ingestion.
type Student struct {
	ID              string     `db:"id" json:"id"`
	SchoolID        string     `db:"school_id" json:"school_id"`
	ClassID         string     `db:"class_id" json:"class_id"`
	RollNumber      string     `db:"roll_number" json:"roll_number"`
	Name            string     `db:"name" json:"name"`
	DOB             *time.Time `db:"dob" json:"dob,omitempty"`
	Gender          *Gender    `db:"gender" json:"gender,omitempty"`
	ProfileImageURL *string    `db:"profile_image_url" json:"profile_image_url,omitempty"`
	Active          bool       `db:"active" json:"active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID   string
	SchoolID  string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentUpsert carries the mutable fields written by the roster ingestion
// upsert keyed on (class_id, roll_number).
type StudentUpsert struct {
	SchoolID   string
	ClassID    string
	RollNumber string
	Name       string
	DOB        *time.Time
	Gender     *Gender
}

// UpsertResult reports whether the upsert created or updated the student.
type UpsertResult struct {
	Student Student
	Created bool
}
