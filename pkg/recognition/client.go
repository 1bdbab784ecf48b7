package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/attendly/attendly-api/pkg/config"
	appErrors "github.com/attendly/attendly-api/pkg/errors"
)

// Client talks to the external face-recognition service. The service itself is
// an opaque collaborator: this client only knows its two endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a recognition client with an explicitly owned HTTP client.
func New(cfg config.RecognitionConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type generateEmbeddingRequest struct {
	ImageURL  string `json:"imageUrl"`
	StudentID string `json:"studentId"`
	ClassID   string `json:"classId"`
}

type recognizeRequest struct {
	ClassID   string   `json:"classId"`
	ImageURLs []string `json:"imageUrls"`
}

type recognizeResponse struct {
	PresentStudentIDs []string `json:"presentStudentIds"`
}

// GenerateEmbedding asks the service to index a student's profile photo.
func (c *Client) GenerateEmbedding(ctx context.Context, studentID, classID, imageURL string) error {
	payload := generateEmbeddingRequest{ImageURL: imageURL, StudentID: studentID, ClassID: classID}
	return c.post(ctx, "/generate-embedding", payload, nil)
}

// Recognize submits classroom image URLs and returns the recognized student IDs.
func (c *Client) Recognize(ctx context.Context, classID string, imageURLs []string) ([]string, error) {
	if len(imageURLs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one image URL is required")
	}
	var out recognizeResponse
	if err := c.post(ctx, "/recognize", recognizeRequest{ClassID: classID, ImageURLs: imageURLs}, &out); err != nil {
		return nil, err
	}
	return out.PresentStudentIDs, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode recognition payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build recognition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamService.Code, appErrors.ErrUpstreamService.Status, "recognition service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return appErrors.Wrap(
			fmt.Errorf("recognition service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			appErrors.ErrUpstreamService.Code, appErrors.ErrUpstreamService.Status, "recognition request failed",
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode recognition response: %w", err)
	}
	return nil
}
