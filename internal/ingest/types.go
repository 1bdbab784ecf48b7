package ingest

import (
	"context"

	"github.com/attendly/attendly-api/internal/models"
)

// Rejection and failure reason codes. Reasons prefixed with the item's origin
// let callers distinguish bad input (fix the file) from infrastructure faults
// (retry later).
const (
	ReasonMissingName       = "missing_name"
	ReasonMissingRollNumber = "missing_roll_number"
	ReasonInvalidDOB        = "invalid_dob"
	ReasonInvalidGender     = "invalid_gender"
	ReasonSuperseded        = "superseded_by_later_row"

	ReasonNoSuchRoll         = "no_such_roll"
	ReasonAmbiguousFilename  = "ambiguous_filename"
	ReasonUnsupportedFile    = "unsupported_file_type"
	ReasonDuplicateInArchive = "duplicate_in_archive"

	ReasonNetworkError  = "network_error"
	ReasonStoreRejected = "store_rejected"
	ReasonTimeout       = "timeout"
	ReasonPersistFailed = "persist_failed"
)

// RosterRow is one raw spreadsheet row. Cell values are kept as strings until
// validation so a malformed cell rejects the row, not the whole file.
type RosterRow struct {
	Index      int // 1-based spreadsheet row number, header included
	Name       string
	RollNumber string
	DOB        string
	Gender     string
}

// RowStatus classifies the outcome of a single roster row.
type RowStatus string

const (
	RowCreated    RowStatus = "created"
	RowUpdated    RowStatus = "updated"
	RowRejected   RowStatus = "rejected"
	RowFailed     RowStatus = "failed"
	RowSuperseded RowStatus = "superseded"
)

// RowOutcome is the single outcome record produced for each roster row.
type RowOutcome struct {
	Row    int       `json:"row"`
	Status RowStatus `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// RosterSummary aggregates one roster ingestion pass.
type RosterSummary struct {
	Total        int          `json:"total"`
	Created      int          `json:"created"`
	Updated      int          `json:"updated"`
	SkippedCount int          `json:"skippedCount"`
	FailedCount  int          `json:"failedCount"`
	Outcomes     []RowOutcome `json:"results"`
	Errors       []ItemError  `json:"errors"`
}

// ItemError is a per-row or per-file diagnostic in a summary.
type ItemError struct {
	Row      int    `json:"row,omitempty"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason"`
}

// ArchiveEntry is one image file pulled out of the uploaded archive.
type ArchiveEntry struct {
	Filename string
	Data     []byte
}

// MatchOutcome pairs an archive entry with a student, or explains why not.
type MatchOutcome struct {
	Filename string
	Student  *models.Student // nil unless matched
	Entry    *ArchiveEntry   // nil unless matched
	Reason   string          // empty when matched
}

// Matched reports whether the entry resolved to exactly one student.
func (m MatchOutcome) Matched() bool {
	return m.Student != nil
}

// UploadOutcome is the terminal result for one matched archive entry.
type UploadOutcome struct {
	Filename   string
	RollNumber string
	StudentID  string
	URL        string
	Reason     string // empty on success
}

// PhotoSummary aggregates one photo ingestion pass. Its total is independent
// of any roster total and the two are never combined.
type PhotoSummary struct {
	Total        int             `json:"total"`
	Uploaded     int             `json:"uploaded"`
	SkippedCount int             `json:"skippedCount"`
	FailedCount  int             `json:"failedCount"`
	Uploads      []UploadOutcome `json:"-"`
	Errors       []ItemError     `json:"errors"`
}

// StudentStore is the persistence surface the pipeline writes through.
type StudentStore interface {
	Upsert(ctx context.Context, upsert models.StudentUpsert) (*models.UpsertResult, error)
	FindByClass(ctx context.Context, classID string) ([]models.Student, error)
	UpdateProfileImage(ctx context.Context, studentID, url string) error
}

// ImageUploader pushes image bytes to the remote asset store.
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, folder, publicID string) (string, error)
}
