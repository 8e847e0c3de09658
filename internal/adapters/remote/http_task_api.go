package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fieldsync-agent/internal/domain"
)

// HTTPTaskAPI implements ports.TaskAPI against the dispatch REST backend.
//
// It coordinates:
//   - JSON status/signature/location submissions
//   - Multipart POD document uploads
//   - External API calls with retry/backoff
//   - Idempotency-Key headers derived from the queued action id
//
// The client is safe for concurrent use.
type HTTPTaskAPI struct {
	session *http.Client
	baseURL string
	token   string
}

func NewHTTPTaskAPI(baseURL, token string) (*HTTPTaskAPI, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("task api base url is empty")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("task api token is empty")
	}

	return &HTTPTaskAPI{
		session: &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}, nil
}

// FetchTasks retrieves the authoritative task list for the driver.
func (c *HTTPTaskAPI) FetchTasks(ctx context.Context) ([]*domain.DeliveryTask, error) {
	url := c.baseURL + "/driver/tasks"

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, url, "", nil)
	})
	if err != nil {
		return nil, classify("fetch tasks", err)
	}
	defer resp.Body.Close()

	var body struct {
		Tasks []*domain.DeliveryTask `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("fetch tasks: decode response: %w", err)
	}
	return body.Tasks, nil
}

// UpdateStatus submits one task status update.
func (c *HTTPTaskAPI) UpdateStatus(ctx context.Context, key string, p domain.StatusUpdatePayload) error {
	url := fmt.Sprintf("%s/driver/tasks/%d/status", c.baseURL, p.Task)

	payload, err := json.Marshal(map[string]any{
		"status": p.Status,
		"notes":  p.Notes,
		"lat":    p.Lat,
		"lng":    p.Lng,
	})
	if err != nil {
		return fmt.Errorf("update status: marshal: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, url, key, bytes.NewReader(payload))
	})
	if err != nil {
		return classify("update status", err)
	}
	resp.Body.Close()
	return nil
}

// UploadPOD pushes the aggregated proof-of-delivery bundle: every photo as a
// multipart document attachment, then a single completion status update
// carrying signature, notes and damage report. Per-request idempotency keys
// are derived from the action id, so a replay after a lost ack re-sends the
// same keys and the server can drop duplicates.
func (c *HTTPTaskAPI) UploadPOD(ctx context.Context, key string, p domain.PODUploadPayload) error {
	for i, uri := range p.PhotoURIs {
		photoKey := fmt.Sprintf("%s:photo:%d", key, i)
		if err := c.uploadDocument(ctx, photoKey, p.Task, uri); err != nil {
			return err
		}
	}

	url := fmt.Sprintf("%s/driver/tasks/%d/status", c.baseURL, p.Task)
	payload, err := json.Marshal(map[string]any{
		"status":       domain.StatusCompleted,
		"notes":        p.Notes,
		"signature":    p.Signature,
		"damaged":      p.Damaged,
		"damage_notes": p.DamageNotes,
		"completed_at": p.CompletedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("upload pod: marshal: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, url, key+":status", bytes.NewReader(payload))
	})
	if err != nil {
		return classify("upload pod", err)
	}
	resp.Body.Close()
	return nil
}

// uploadDocument posts one local photo as a multipart attachment in the
// "pod" collection. The file is read once; each retry rebuilds the multipart
// body from the buffered bytes.
func (c *HTTPTaskAPI) uploadDocument(ctx context.Context, key string, taskID int, uri string) error {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("upload document: read %q: %w", path, err)
	}
	filename := filepath.Base(path)

	url := fmt.Sprintf("%s/driver/tasks/%d/documents", c.baseURL, taskID)

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return nil, fmt.Errorf("upload document: form file: %w", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("upload document: copy: %w", err)
		}
		if err := mw.WriteField("filename", filename); err != nil {
			return nil, fmt.Errorf("upload document: filename field: %w", err)
		}
		if err := mw.WriteField("collection", "pod"); err != nil {
			return nil, fmt.Errorf("upload document: collection field: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("upload document: close writer: %w", err)
		}

		req, err := c.newRequest(ctx, http.MethodPost, url, key, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return classify("upload document", err)
	}
	resp.Body.Close()
	return nil
}

// SignECMR submits the consignee's e-CMR signature.
func (c *HTTPTaskAPI) SignECMR(ctx context.Context, key string, p domain.ECMRSignPayload) error {
	url := fmt.Sprintf("%s/driver/tasks/%d/ecmr", c.baseURL, p.Task)

	payload, err := json.Marshal(map[string]any{
		"signature": p.Signature,
		"signed_at": p.SignedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("sign ecmr: marshal: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, url, key, bytes.NewReader(payload))
	})
	if err != nil {
		return classify("sign ecmr", err)
	}
	resp.Body.Close()
	return nil
}

// UpdateLocation reports the driver's position for a task.
func (c *HTTPTaskAPI) UpdateLocation(ctx context.Context, key string, p domain.LocationUpdatePayload) error {
	url := fmt.Sprintf("%s/driver/tasks/%d/location", c.baseURL, p.Task)

	payload, err := json.Marshal(map[string]any{
		"lat":         p.Lat,
		"lng":         p.Lng,
		"recorded_at": p.RecordedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("update location: marshal: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, url, key, bytes.NewReader(payload))
	})
	if err != nil {
		return classify("update location", err)
	}
	resp.Body.Close()
	return nil
}
