package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/attendly/attendly-api/pkg/errors"
)

// Column headers are matched case-insensitively with separators stripped, so
// "Roll Number", "rollNumber" and "roll_number" all resolve to the same column.
var requiredColumns = []string{"name", "rollnumber"}

// ParseRoster reads the first worksheet of an XLSX roster into raw rows,
// preserving spreadsheet order. Row order matters downstream: when two rows
// share a roll number the last one wins.
//
// Only an unreadable workbook or a missing required column is fatal; rows with
// bad cell contents are returned as-is and rejected during validation.
func ParseRoster(data []byte) ([]RosterRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, "file is not a readable spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnreadableFile, "spreadsheet has no worksheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, "failed to read worksheet rows")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnreadableFile, "spreadsheet has no header row")
	}

	columns := make(map[string]int)
	for i, header := range rows[0] {
		key := normalizeKey(header)
		if key == "" {
			continue
		}
		if _, exists := columns[key]; !exists {
			columns[key] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, appErrors.Clone(appErrors.ErrUnreadableFile, fmt.Sprintf("missing required column: %s", col))
		}
	}

	cell := func(row []string, key string) string {
		idx, ok := columns[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	parsed := make([]RosterRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		parsed = append(parsed, RosterRow{
			Index:      i + 2, // row 1 is the header
			Name:       cell(row, "name"),
			RollNumber: cell(row, "rollnumber"),
			DOB:        cell(row, "dob"),
			Gender:     cell(row, "gender"),
		})
	}
	return parsed, nil
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
