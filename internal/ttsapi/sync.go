package ttsapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Synthesis on the one-shot endpoint happens inside the request, so the
// timeout has to cover the full generation.
const syncTimeout = 300 * time.Second

// SyncClient talks to the one-shot conversion endpoint, which returns audio
// directly with no job indirection.
type SyncClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSyncClient creates a SyncClient targeting the given base URL.
func NewSyncClient(baseURL string) *SyncClient {
	return &SyncClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: syncTimeout,
		},
	}
}

// Synthesize converts text to audio in a single call.
func (c *SyncClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, contentType, err := multipartForm(func(w *multipart.Writer) error {
		return w.WriteField("text", text)
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hf_tts", body)
	if err != nil {
		return nil, fmt.Errorf("creating synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesizing audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SubmitError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio body: %w", err)
	}
	return data, nil
}
