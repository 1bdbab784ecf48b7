package ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildRoster(t *testing.T, headers []string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))

	for i, row := range rows {
		record := make([]interface{}, len(row))
		for j, cell := range row {
			record[j] = cell
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &record))
	}

	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	return buf.Bytes()
}

func TestParseRosterPreservesRowOrder(t *testing.T) {
	data := buildRoster(t,
		[]string{"Name", "Roll Number", "DOB", "Gender"},
		[][]string{
			{"Alice", "1", "2010-04-01", "F"},
			{"Bob", "2", "", ""},
			{"", "3", "", "M"},
		},
	)

	rows, err := ParseRoster(data)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 2, rows[0].Index)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, "1", rows[0].RollNumber)
	assert.Equal(t, "2010-04-01", rows[0].DOB)
	assert.Equal(t, "F", rows[0].Gender)

	assert.Equal(t, 4, rows[2].Index)
	assert.Empty(t, rows[2].Name)
	assert.Equal(t, "3", rows[2].RollNumber)
}

func TestParseRosterHeaderVariants(t *testing.T) {
	data := buildRoster(t,
		[]string{"  name ", "rollNumber"},
		[][]string{{"Alice", "7"}},
	)

	rows, err := ParseRoster(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].RollNumber)
}

func TestParseRosterMalformedRowsAreNotFatal(t *testing.T) {
	data := buildRoster(t,
		[]string{"name", "roll_number", "dob"},
		[][]string{
			{"Alice", "1", "not-a-date"},
			{"Bob", "", ""},
		},
	)

	rows, err := ParseRoster(data)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "not-a-date", rows[0].DOB)
}

func TestParseRosterMissingRequiredColumn(t *testing.T) {
	data := buildRoster(t, []string{"name", "dob"}, [][]string{{"Alice", "2010-04-01"}})

	_, err := ParseRoster(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollnumber")
}

func TestParseRosterUnreadableBytes(t *testing.T) {
	_, err := ParseRoster([]byte("definitely not a spreadsheet"))
	require.Error(t, err)
}
