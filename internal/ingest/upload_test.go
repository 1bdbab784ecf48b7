package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/internal/models"
)

type fakeUploader struct {
	mu      sync.Mutex
	failFor map[string]error // publicID -> forced error
	calls   int
	active  int
	peak    int
}

func (f *fakeUploader) UploadImage(ctx context.Context, _ []byte, folder, publicID string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	err := f.failFor[publicID]
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	return "https://assets.example/" + folder + "/" + publicID + ".jpg", nil
}

func matchedEntries(students []models.Student) []MatchOutcome {
	entries := make([]ArchiveEntry, len(students))
	matches := make([]MatchOutcome, len(students))
	for i := range students {
		entries[i] = ArchiveEntry{Filename: students[i].RollNumber + ".jpg", Data: []byte("img")}
		matches[i] = MatchOutcome{Filename: entries[i].Filename, Student: &students[i], Entry: &entries[i]}
	}
	return matches
}

func TestRunUploadsPartialFailureIsolation(t *testing.T) {
	store := newMemoryStore()
	uploader := &fakeUploader{failFor: map[string]error{"3": errors.New("413 payload too large")}}
	matches := matchedEntries(classStudents("1", "2", "3", "4", "5"))

	uploads := RunUploads(context.Background(), uploader, store, zap.NewNop(), UploadConfig{Folder: "school1/students/class1/face-images"}, matches)
	summary := BuildPhotoSummary(matches, uploads)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.Uploaded)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 0, summary.SkippedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "3.jpg", summary.Errors[0].Filename)
	assert.Equal(t, ReasonStoreRejected, summary.Errors[0].Reason)

	assert.Len(t, store.images, 4)
	assert.NotContains(t, store.images, "st-3")
}

func TestRunUploadsURLOnlyOnSuccess(t *testing.T) {
	store := newMemoryStore()
	uploader := &fakeUploader{failFor: map[string]error{"2": errors.New("rejected")}}
	matches := matchedEntries(classStudents("1", "2"))

	uploads := RunUploads(context.Background(), uploader, store, zap.NewNop(), UploadConfig{Folder: "f"}, matches)
	require.Len(t, uploads, 2)

	for _, u := range uploads {
		if u.Reason == "" {
			assert.NotEmpty(t, u.URL)
		} else {
			assert.Empty(t, u.URL)
		}
	}
}

func TestRunUploadsPersistFailureCountsAsFailed(t *testing.T) {
	store := newMemoryStore()
	store.imageErr["st-1"] = errors.New("connection reset")
	uploader := &fakeUploader{}
	matches := matchedEntries(classStudents("1"))

	uploads := RunUploads(context.Background(), uploader, store, zap.NewNop(), UploadConfig{Folder: "f"}, matches)
	summary := BuildPhotoSummary(matches, uploads)

	assert.Equal(t, 0, summary.Uploaded)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, ReasonPersistFailed, summary.Errors[0].Reason)
}

func TestRunUploadsBoundedConcurrency(t *testing.T) {
	store := newMemoryStore()
	uploader := &fakeUploader{}
	matches := matchedEntries(classStudents("1", "2", "3", "4", "5", "6", "7", "8", "9", "10"))

	RunUploads(context.Background(), uploader, store, zap.NewNop(), UploadConfig{Folder: "f", Concurrency: 2}, matches)

	assert.Equal(t, 10, uploader.calls)
	assert.LessOrEqual(t, uploader.peak, 2)
}

func TestRunUploadsTimeoutClassification(t *testing.T) {
	store := newMemoryStore()
	uploader := &fakeUploader{failFor: map[string]error{"1": context.DeadlineExceeded}}
	matches := matchedEntries(classStudents("1"))

	uploads := RunUploads(context.Background(), uploader, store, zap.NewNop(), UploadConfig{Folder: "f"}, matches)
	require.Len(t, uploads, 1)
	assert.Equal(t, ReasonTimeout, uploads[0].Reason)
}

func TestBuildPhotoSummarySkippedAndFailedNeverBlend(t *testing.T) {
	matches := []MatchOutcome{
		{Filename: "1.jpg", Student: &models.Student{ID: "st-1", RollNumber: "1"}, Entry: &ArchiveEntry{Filename: "1.jpg"}},
		{Filename: "99.jpg", Reason: ReasonNoSuchRoll},
		{Filename: "readme.txt", Reason: ReasonUnsupportedFile},
	}
	uploads := []UploadOutcome{{Filename: "1.jpg", RollNumber: "1", StudentID: "st-1", URL: "https://assets.example/1.jpg"}}

	summary := BuildPhotoSummary(matches, uploads)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 2, summary.SkippedCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.Len(t, summary.Errors, 2)
}
