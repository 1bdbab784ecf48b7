package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
)

const dobLayout = "2006-01-02"

// ValidateRow maps a raw roster row to an upsert draft, or returns the
// rejection reason. dob and gender are optional but must parse when present.
func ValidateRow(row RosterRow, schoolID, classID string) (*models.StudentUpsert, string) {
	if row.Name == "" {
		return nil, ReasonMissingName
	}
	if row.RollNumber == "" {
		return nil, ReasonMissingRollNumber
	}

	upsert := models.StudentUpsert{
		SchoolID:   schoolID,
		ClassID:    classID,
		RollNumber: row.RollNumber,
		Name:       row.Name,
	}

	if row.DOB != "" {
		dob, err := time.Parse(dobLayout, row.DOB)
		if err != nil {
			return nil, ReasonInvalidDOB
		}
		upsert.DOB = &dob
	}

	if row.Gender != "" {
		gender, ok := normalizeGender(row.Gender)
		if !ok {
			return nil, ReasonInvalidGender
		}
		upsert.Gender = &gender
	}

	return &upsert, ""
}

func normalizeGender(raw string) (models.Gender, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M", "MALE":
		return models.GenderMale, true
	case "F", "FEMALE":
		return models.GenderFemale, true
	case "O", "OTHER":
		return models.GenderOther, true
	default:
		return "", false
	}
}

// RunRoster validates rows in order and upserts accepted rows one at a time.
// Each upsert is a single statement keyed on (class_id, roll_number), so a
// crash mid-batch leaves earlier rows committed and never a half-written
// student. When several rows carry the same roll number only the last one is
// written; earlier ones are reported as superseded rather than silently
// dropped. Every input row yields exactly one outcome.
func RunRoster(ctx context.Context, store StudentStore, logger *zap.Logger, schoolID, classID string, rows []RosterRow) RosterSummary {
	if logger == nil {
		logger = zap.NewNop()
	}

	summary := RosterSummary{
		Total:    len(rows),
		Outcomes: make([]RowOutcome, 0, len(rows)),
	}

	type validated struct {
		row    RosterRow
		upsert *models.StudentUpsert
		reason string
	}

	checked := make([]validated, len(rows))
	lastForRoll := make(map[string]int) // roll number -> index of last accepted row
	for i, row := range rows {
		upsert, reason := ValidateRow(row, schoolID, classID)
		checked[i] = validated{row: row, upsert: upsert, reason: reason}
		if upsert != nil {
			lastForRoll[upsert.RollNumber] = i
		}
	}

	for i, v := range checked {
		switch {
		case v.upsert == nil:
			summary.SkippedCount++
			summary.Outcomes = append(summary.Outcomes, RowOutcome{Row: v.row.Index, Status: RowRejected, Reason: v.reason})
			summary.Errors = append(summary.Errors, ItemError{Row: v.row.Index, Reason: v.reason})

		case lastForRoll[v.upsert.RollNumber] != i:
			// A later row redefines this roll number; last row wins.
			reason := fmt.Sprintf("%s:%d", ReasonSuperseded, checked[lastForRoll[v.upsert.RollNumber]].row.Index)
			summary.Outcomes = append(summary.Outcomes, RowOutcome{Row: v.row.Index, Status: RowSuperseded, Reason: reason})
			summary.Errors = append(summary.Errors, ItemError{Row: v.row.Index, Reason: reason})

		default:
			result, err := store.Upsert(ctx, *v.upsert)
			if err != nil {
				logger.Warn("roster upsert failed",
					zap.String("class_id", classID),
					zap.String("roll_number", v.upsert.RollNumber),
					zap.Error(err),
				)
				summary.FailedCount++
				summary.Outcomes = append(summary.Outcomes, RowOutcome{Row: v.row.Index, Status: RowFailed, Reason: ReasonPersistFailed})
				summary.Errors = append(summary.Errors, ItemError{Row: v.row.Index, Reason: ReasonPersistFailed})
				continue
			}
			if result.Created {
				summary.Created++
				summary.Outcomes = append(summary.Outcomes, RowOutcome{Row: v.row.Index, Status: RowCreated})
			} else {
				summary.Updated++
				summary.Outcomes = append(summary.Outcomes, RowOutcome{Row: v.row.Index, Status: RowUpdated})
			}
		}
	}

	return summary
}
