package ttsapi

import "fmt"

// Job statuses reported by the conversion backend. The backend also emits
// transitional values such as "queued" and "running"; anything that is not
// finished or error is treated as still in flight.
const (
	StatusPending  = "pending"
	StatusFinished = "finished"
	StatusError    = "error"
)

// Progress is one snapshot of an asynchronous conversion job. Percent is nil
// when the backend omits it; callers must not assume it increases
// monotonically.
type Progress struct {
	Status  string `json:"status"`
	Percent *int   `json:"percent,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Terminal reports whether no further status change will occur for this job.
func (p Progress) Terminal() bool {
	return p.Status == StatusFinished || p.Status == StatusError
}

// SubmitError is returned when the backend rejects a conversion request
// (async submission or the one-shot endpoint) with a non-2xx status.
type SubmitError struct {
	StatusCode int
	Message    string
}

func (e *SubmitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("conversion request failed (HTTP %d)", e.StatusCode)
}

// ArtifactError is returned when the backend refuses to hand over the audio
// for a job that already reported finished.
type ArtifactError struct {
	StatusCode int
	Message    string
}

func (e *ArtifactError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("audio download failed (HTTP %d)", e.StatusCode)
}

// errBody is the optional JSON error envelope on non-2xx responses.
type errBody struct {
	Error string `json:"error"`
}
