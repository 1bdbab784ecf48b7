package storage

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/attendly/attendly-api/pkg/config"
)

// AssetStore abstracts the remote content store used for student photos and
// archived import files.
type AssetStore interface {
	UploadImage(ctx context.Context, data []byte, folder, publicID string) (string, error)
	UploadRaw(ctx context.Context, data []byte, folder, publicID string) (string, error)
	Delete(ctx context.Context, publicID string) error
}

// CloudinaryStore implements AssetStore backed by Cloudinary.
type CloudinaryStore struct {
	client *cloudinary.Cloudinary
}

// NewCloudinaryStore builds a Cloudinary-backed asset store from explicit credentials.
func NewCloudinaryStore(cfg config.CloudinaryConfig) (*CloudinaryStore, error) {
	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{client: client}, nil
}

// UploadImage pushes image bytes and returns the stable secure URL.
// Re-uploading the same publicID overwrites the previous asset.
func (s *CloudinaryStore) UploadImage(ctx context.Context, data []byte, folder, publicID string) (string, error) {
	return s.upload(ctx, data, folder, publicID, "image")
}

// UploadRaw pushes non-image bytes (e.g. the original roster spreadsheet kept
// for auditing) and returns the secure URL.
func (s *CloudinaryStore) UploadRaw(ctx context.Context, data []byte, folder, publicID string) (string, error) {
	return s.upload(ctx, data, folder, publicID, "raw")
}

func (s *CloudinaryStore) upload(ctx context.Context, data []byte, folder, publicID, resourceType string) (string, error) {
	res, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: resourceType,
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload rejected: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// Delete removes an asset by public ID. Missing assets are not treated as errors.
func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+/`)

// PublicIDFromURL extracts the Cloudinary public ID from a delivery URL so a
// student's previous photo can be destroyed when the record is removed.
func PublicIDFromURL(url string) string {
	parts := strings.SplitN(url, "/upload/", 2)
	if len(parts) != 2 {
		return ""
	}
	id := versionSegment.ReplaceAllString(parts[1], "")
	if dot := strings.LastIndex(id, "."); dot != -1 {
		id = id[:dot]
	}
	return id
}
