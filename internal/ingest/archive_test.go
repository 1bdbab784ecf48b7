package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly-api/internal/models"
)

func buildZip(t *testing.T, files map[string][]byte, order []string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, name := range order {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func classStudents(rolls ...string) []models.Student {
	students := make([]models.Student, len(rolls))
	for i, roll := range rolls {
		students[i] = models.Student{ID: "st-" + roll, ClassID: "class1", RollNumber: roll, Name: "Student " + roll}
	}
	return students
}

func TestReadArchiveSkipsArtifactsAndDirs(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"photos/":          nil,
		"photos/1.jpg":     []byte("jpeg"),
		"__MACOSX/._1.jpg": []byte("junk"),
		"photos/.DS_Store": []byte("junk"),
		"photos/notes.txt": []byte("text"),
		"photos/2.PNG":     []byte("png"),
	}, []string{"photos/", "photos/1.jpg", "__MACOSX/._1.jpg", "photos/.DS_Store", "photos/notes.txt", "photos/2.PNG"})

	entries, err := ReadArchive(data)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "1.jpg", entries[0].Filename)
	assert.Equal(t, "notes.txt", entries[1].Filename)
	assert.Equal(t, "2.PNG", entries[2].Filename)
}

func TestReadArchiveRejectsGarbage(t *testing.T) {
	_, err := ReadArchive([]byte("not a zip"))
	require.Error(t, err)
}

func TestMatchArchiveOneOutcomePerEntry(t *testing.T) {
	entries := []ArchiveEntry{
		{Filename: "1.jpg", Data: []byte("a")},
		{Filename: "99.jpg", Data: []byte("b")},
		{Filename: "readme.txt", Data: []byte("c")},
		{Filename: "2.png", Data: []byte("d")},
	}

	outcomes := MatchArchive(entries, classStudents("1", "2"))
	require.Len(t, outcomes, len(entries))

	assert.True(t, outcomes[0].Matched())
	assert.Equal(t, "st-1", outcomes[0].Student.ID)

	assert.False(t, outcomes[1].Matched())
	assert.Equal(t, ReasonNoSuchRoll, outcomes[1].Reason)

	assert.Equal(t, ReasonUnsupportedFile, outcomes[2].Reason)

	assert.True(t, outcomes[3].Matched())
	assert.Equal(t, "st-2", outcomes[3].Student.ID)
}

func TestMatchArchiveFirstEntryWinsOnDuplicateKey(t *testing.T) {
	entries := []ArchiveEntry{
		{Filename: "1.jpg", Data: []byte("a")},
		{Filename: "1.png", Data: []byte("b")},
	}

	outcomes := MatchArchive(entries, classStudents("1"))
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Matched())
	assert.Equal(t, "1.jpg", outcomes[0].Filename)
	assert.False(t, outcomes[1].Matched())
	assert.Equal(t, ReasonDuplicateInArchive, outcomes[1].Reason)
}

func TestMatchArchiveKeyNormalization(t *testing.T) {
	entries := []ArchiveEntry{{Filename: "Roll-07.JPG", Data: []byte("a")}}

	outcomes := MatchArchive(entries, classStudents("ROLL07"))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Matched())
}

func TestMatchArchiveAmbiguousWhenNormalizedRollsCollide(t *testing.T) {
	students := []models.Student{
		{ID: "st-a", ClassID: "class1", RollNumber: "A-1"},
		{ID: "st-b", ClassID: "class1", RollNumber: "a1"},
	}
	entries := []ArchiveEntry{{Filename: "a1.jpg", Data: []byte("x")}}

	outcomes := MatchArchive(entries, students)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Matched())
	assert.Equal(t, ReasonAmbiguousFilename, outcomes[0].Reason)
}
