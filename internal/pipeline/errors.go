package pipeline

import (
	"errors"

	"github.com/vaani-tts/vaani/internal/openrouter"
	"github.com/vaani-tts/vaani/internal/poller"
	"github.com/vaani-tts/vaani/internal/ttsapi"
)

// ErrBusy is returned when a conversion is requested while another one is
// still in flight on the same Converter.
var ErrBusy = errors.New("a conversion is already in progress")

// ValidationError reports invalid input, detected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Kind tags the failure class of a conversion error for callers that report
// outcomes without inspecting concrete error types.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindBusy       Kind = "busy"
	KindUpstream   Kind = "upstream"
	KindSubmission Kind = "submission"
	KindJobFailed  Kind = "job_failed"
	KindArtifact   Kind = "artifact"
	KindNetwork    Kind = "network"
)

// Classify maps an error from Convert to its Kind. Transport and decoding
// failures that carry no more specific type are reported as network errors.
func Classify(err error) Kind {
	var (
		validationErr *ValidationError
		apiErr        *openrouter.APIError
		submitErr     *ttsapi.SubmitError
		artifactErr   *ttsapi.ArtifactError
		jobErr        *poller.JobError
	)
	switch {
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.Is(err, openrouter.ErrNoAPIKey):
		return KindAuth
	case errors.As(err, &apiErr):
		return KindUpstream
	case errors.As(err, &submitErr):
		return KindSubmission
	case errors.As(err, &artifactErr):
		return KindArtifact
	case errors.As(err, &jobErr):
		return KindJobFailed
	default:
		return KindNetwork
	}
}
