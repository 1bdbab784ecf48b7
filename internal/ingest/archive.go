package ingest

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/attendly/attendly-api/internal/models"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// ReadArchive extracts file entries from a ZIP archive in archive order.
// Directories and macOS packaging artifacts are not entries and produce no
// outcomes; everything else does, even unsupported file types.
func ReadArchive(data []byte) ([]ArchiveEntry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, "file is not a readable ZIP archive")
	}

	var entries []ArchiveEntry
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(f.Name, "__MACOSX") || strings.HasSuffix(f.Name, ".DS_Store") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			// Entry is present but unreadable; record it with empty data so the
			// matcher can still surface an outcome for it.
			entries = append(entries, ArchiveEntry{Filename: path.Base(f.Name)})
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			entries = append(entries, ArchiveEntry{Filename: path.Base(f.Name)})
			continue
		}
		entries = append(entries, ArchiveEntry{Filename: path.Base(f.Name), Data: content})
	}
	return entries, nil
}

// MatchArchive pairs each entry with a student by filename-derived roll
// number: the filename stem, lowercased and stripped of separators, must equal
// exactly one student's roll number in the class. When two entries derive the
// same key the first wins and later ones are flagged as duplicates.
func MatchArchive(entries []ArchiveEntry, students []models.Student) []MatchOutcome {
	byKey := make(map[string][]*models.Student, len(students))
	for i := range students {
		key := normalizeKey(students[i].RollNumber)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], &students[i])
	}

	outcomes := make([]MatchOutcome, 0, len(entries))
	claimed := make(map[string]string) // derived key -> filename that claimed it

	for i := range entries {
		entry := &entries[i]
		ext := strings.ToLower(path.Ext(entry.Filename))
		if _, ok := imageExtensions[ext]; !ok {
			outcomes = append(outcomes, MatchOutcome{Filename: entry.Filename, Reason: ReasonUnsupportedFile})
			continue
		}

		key := normalizeKey(strings.TrimSuffix(entry.Filename, ext))
		if key == "" {
			outcomes = append(outcomes, MatchOutcome{Filename: entry.Filename, Reason: ReasonAmbiguousFilename})
			continue
		}

		candidates := byKey[key]
		switch {
		case len(candidates) == 0:
			outcomes = append(outcomes, MatchOutcome{Filename: entry.Filename, Reason: ReasonNoSuchRoll})
		case len(candidates) > 1:
			outcomes = append(outcomes, MatchOutcome{Filename: entry.Filename, Reason: ReasonAmbiguousFilename})
		case claimed[key] != "":
			outcomes = append(outcomes, MatchOutcome{Filename: entry.Filename, Reason: ReasonDuplicateInArchive})
		default:
			claimed[key] = entry.Filename
			outcomes = append(outcomes, MatchOutcome{Filename: entry.Filename, Student: candidates[0], Entry: entry})
		}
	}
	return outcomes
}
