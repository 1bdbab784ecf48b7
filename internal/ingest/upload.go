package ingest

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UploadConfig bounds the photo upload fan-out.
type UploadConfig struct {
	Folder      string
	Concurrency int
	Timeout     time.Duration
}

// RunUploads pushes every matched entry to the asset store with bounded
// parallelism, then records each student's photo URL. One slow or failing
// upload never blocks or aborts the others; the student's profile_image_url is
// only written after the upload succeeded. The roll number doubles as the
// asset public ID so a re-run of the same archive overwrites in place.
func RunUploads(ctx context.Context, uploader ImageUploader, store StudentStore, logger *zap.Logger, cfg UploadConfig, matches []MatchOutcome) []UploadOutcome {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	matched := make([]MatchOutcome, 0, len(matches))
	for _, m := range matches {
		if m.Matched() {
			matched = append(matched, m)
		}
	}

	outcomes := make([]UploadOutcome, len(matched))
	sem := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup

	for i, m := range matched {
		wg.Add(1)
		go func(i int, m MatchOutcome) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = uploadOne(ctx, uploader, store, logger, cfg, m)
		}(i, m)
	}
	wg.Wait()

	return outcomes
}

func uploadOne(ctx context.Context, uploader ImageUploader, store StudentStore, logger *zap.Logger, cfg UploadConfig, m MatchOutcome) UploadOutcome {
	outcome := UploadOutcome{
		Filename:   m.Filename,
		RollNumber: m.Student.RollNumber,
		StudentID:  m.Student.ID,
	}

	uploadCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	url, err := uploader.UploadImage(uploadCtx, m.Entry.Data, cfg.Folder, m.Student.RollNumber)
	if err != nil {
		outcome.Reason = classifyUploadError(err)
		logger.Warn("photo upload failed",
			zap.String("filename", m.Filename),
			zap.String("student_id", m.Student.ID),
			zap.String("reason", outcome.Reason),
			zap.Error(err),
		)
		return outcome
	}

	if err := store.UpdateProfileImage(ctx, m.Student.ID, url); err != nil {
		outcome.Reason = ReasonPersistFailed
		logger.Warn("photo url persist failed",
			zap.String("student_id", m.Student.ID),
			zap.Error(err),
		)
		return outcome
	}

	outcome.URL = url
	return outcome
}

func classifyUploadError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetworkError
	}
	return ReasonStoreRejected
}

// BuildPhotoSummary merges match and upload outcomes into the photo-pass
// summary. Every archive entry is accounted for exactly once: unmatched
// entries count as skipped, failed uploads as failed.
func BuildPhotoSummary(matches []MatchOutcome, uploads []UploadOutcome) PhotoSummary {
	summary := PhotoSummary{
		Total:   len(matches),
		Uploads: uploads,
	}

	for _, m := range matches {
		if !m.Matched() {
			summary.SkippedCount++
			summary.Errors = append(summary.Errors, ItemError{Filename: m.Filename, Reason: m.Reason})
		}
	}
	for _, u := range uploads {
		if u.Reason != "" {
			summary.FailedCount++
			summary.Errors = append(summary.Errors, ItemError{Filename: u.Filename, Reason: u.Reason})
			continue
		}
		summary.Uploaded++
	}
	return summary
}
