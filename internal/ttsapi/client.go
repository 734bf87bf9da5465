// Package ttsapi wraps the remote text-to-speech backends: an asynchronous
// job API (submit, poll progress, download audio) and a synchronous one-shot
// endpoint. Each method performs exactly one round trip; nothing here retries.
package ttsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client talks to the asynchronous conversion backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// submitResponse mirrors the JSON returned by POST /convert_async.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// SubmitText starts a conversion job for raw text and returns the job id.
func (c *Client) SubmitText(ctx context.Context, text string) (string, error) {
	body, contentType, err := multipartForm(func(w *multipart.Writer) error {
		return w.WriteField("text", text)
	})
	if err != nil {
		return "", err
	}
	return c.submit(ctx, body, contentType)
}

// SubmitFile starts a conversion job for a file upload and returns the job id.
func (c *Client) SubmitFile(ctx context.Context, filename string, data []byte) (string, error) {
	body, contentType, err := multipartForm(func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.submit(ctx, body, contentType)
}

func (c *Client) submit(ctx context.Context, body *bytes.Buffer, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert_async", body)
	if err != nil {
		return "", fmt.Errorf("creating submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting conversion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmitError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var result submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if result.JobID == "" {
		return "", fmt.Errorf("submit response missing job_id")
	}
	return result.JobID, nil
}

// Progress fetches the current status of a job. A non-2xx response is a
// fatal poll error, not something to retry.
func (c *Client) Progress(ctx context.Context, jobID string) (Progress, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/progress/"+jobID, nil)
	if err != nil {
		return Progress{}, fmt.Errorf("creating progress request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Progress{}, fmt.Errorf("fetching progress for job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Progress{}, fmt.Errorf("progress for job %s: unexpected status %d", jobID, resp.StatusCode)
	}

	var p Progress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Progress{}, fmt.Errorf("decoding progress response: %w", err)
	}
	return p, nil
}

// Download retrieves the audio for a finished job.
func (c *Client) Download(ctx context.Context, jobID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading audio for job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ArtifactError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio body: %w", err)
	}
	return data, nil
}

// multipartForm builds a multipart body via fill and returns it with its
// content type.
func multipartForm(fill func(*multipart.Writer) error) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", fmt.Errorf("building multipart form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessage extracts the optional {"error": "..."} message from a non-2xx
// response body. Returns "" when the body carries no usable message.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return ""
	}
	var body errBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Error
}
