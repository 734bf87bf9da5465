// Package pipeline orchestrates one conversion end to end: validation,
// optional AI pre-processing, backend selection, job polling and artifact
// retrieval.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaani-tts/vaani/internal/poller"
	"github.com/vaani-tts/vaani/internal/textextract"
	"github.com/vaani-tts/vaani/internal/ttsapi"
)

// AIClient abstracts the chat completion client used for pre-processing.
type AIClient interface {
	HasKey() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// JobClient abstracts the asynchronous conversion backend.
type JobClient interface {
	SubmitText(ctx context.Context, text string) (string, error)
	SubmitFile(ctx context.Context, filename string, data []byte) (string, error)
	Progress(ctx context.Context, jobID string) (ttsapi.Progress, error)
	Download(ctx context.Context, jobID string) ([]byte, error)
}

// SyncConverter abstracts the one-shot conversion backend.
type SyncConverter interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Artifact is the audio produced by a completed conversion. A Converter owns
// at most one live Artifact; starting a new conversion releases the previous
// one once the replacement is installed.
type Artifact struct {
	Data []byte
	MIME string
}

// Release drops the binary payload.
func (a *Artifact) Release() {
	a.Data = nil
}

// Converter runs conversions one at a time. A request made while another is
// in flight fails with ErrBusy rather than queueing.
type Converter struct {
	ai       AIClient
	jobs     JobClient
	sync     SyncConverter
	interval time.Duration
	logger   *slog.Logger

	busy atomic.Bool

	mu       sync.Mutex
	artifact *Artifact
}

// New creates a Converter. pollInterval <= 0 defaults to 1s.
func New(ai AIClient, jobs JobClient, syncBackend SyncConverter, pollInterval time.Duration) *Converter {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Converter{
		ai:       ai,
		jobs:     jobs,
		sync:     syncBackend,
		interval: pollInterval,
		logger:   slog.Default(),
	}
}

// Busy reports whether a conversion is currently in flight.
func (c *Converter) Busy() bool {
	return c.busy.Load()
}

// Artifact returns the audio of the most recent successful conversion, or
// nil when there is none.
func (c *Converter) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// Convert runs one conversion to completion. Input is validated before any
// network call; AI pre-processing, submission, polling and download then run
// strictly in sequence. On success the returned Artifact is also installed
// as the Converter's current one, releasing its predecessor.
func (c *Converter) Convert(ctx context.Context, req Request, ev Events) (*Artifact, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	p, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	input, err := c.resolveInput(ctx, p, ev)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch p.backend {
	case BackendSync:
		data, err = c.convertSync(ctx, input)
	default:
		data, err = c.convertAsync(ctx, input, ev)
	}
	if err != nil {
		return nil, err
	}

	return c.install(data), nil
}

// validate checks the request and pins the branch before anything touches
// the network.
func (c *Converter) validate(req Request) (plan, error) {
	p := plan{backend: req.Backend}
	if p.backend == "" {
		p.backend = BackendAsync
	}

	switch {
	case req.File != nil && strings.TrimSpace(req.Text) != "":
		return plan{}, &ValidationError{Message: "provide either text or a file, not both"}
	case req.File != nil:
		p.file = req.File
	default:
		p.text = strings.TrimSpace(req.Text)
		if p.text == "" {
			return plan{}, &ValidationError{Message: "enter some text to convert"}
		}
	}

	if req.UseAI {
		p.instruction = strings.TrimSpace(req.Instruction)
		if p.instruction == "" {
			return plan{}, &ValidationError{Message: "enter instructions for the AI (e.g. \"Summarize this text\")"}
		}
		if !c.ai.HasKey() {
			return plan{}, &ValidationError{Message: "an OpenRouter API key is required for AI processing"}
		}
	}

	return p, nil
}

// convertInput is the resolved conversion payload: plain text, or the raw
// file when it is forwarded to the backend untouched.
type convertInput struct {
	text string
	file *FileInput
}

// resolveInput produces the payload the selected backend will receive,
// running AI pre-processing when requested. A file is decoded to text when
// the AI step or the sync backend needs text; otherwise it is forwarded
// as-is for server-side decoding.
func (c *Converter) resolveInput(ctx context.Context, p plan, ev Events) (convertInput, error) {
	if p.instruction == "" {
		if p.file != nil && p.backend == BackendSync {
			text, err := textextract.ToText(p.file.Name, p.file.Data)
			if err != nil {
				return convertInput{}, &ValidationError{Message: err.Error()}
			}
			return convertInput{text: text}, nil
		}
		return convertInput{text: p.text, file: p.file}, nil
	}

	source := p.text
	if p.file != nil {
		text, err := textextract.ToText(p.file.Name, p.file.Data)
		if err != nil {
			return convertInput{}, &ValidationError{Message: err.Error()}
		}
		source = text
	}

	prompt := p.instruction + "\n\nText to process:\n" + source
	processed, err := c.ai.Complete(ctx, prompt)
	if err != nil {
		return convertInput{}, fmt.Errorf("AI processing: %w", err)
	}

	c.logger.Debug("AI pre-processing complete", "input_len", len(source), "output_len", len(processed))
	if ev.OnAIText != nil {
		ev.OnAIText(processed)
	}
	return convertInput{text: processed}, nil
}

func (c *Converter) convertSync(ctx context.Context, input convertInput) ([]byte, error) {
	data, err := c.sync.Synthesize(ctx, input.text)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("sync conversion complete", "bytes", len(data))
	return data, nil
}

func (c *Converter) convertAsync(ctx context.Context, input convertInput, ev Events) ([]byte, error) {
	var jobID string
	var err error
	if input.file != nil {
		jobID, err = c.jobs.SubmitFile(ctx, input.file.Name, input.file.Data)
	} else {
		jobID, err = c.jobs.SubmitText(ctx, input.text)
	}
	if err != nil {
		return nil, err
	}
	c.logger.Debug("conversion job submitted", "job_id", jobID)

	if err := poller.New(c.jobs, c.interval).Wait(ctx, jobID, ev.OnProgress); err != nil {
		return nil, err
	}

	data, err := c.jobs.Download(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("conversion job finished", "job_id", jobID, "bytes", len(data))
	return data, nil
}

// install makes data the current artifact and releases the previous one.
// The swap happens under the lock; the old payload is dropped immediately
// after, so the two artifacts are never both reachable for reuse.
func (c *Converter) install(data []byte) *Artifact {
	art := &Artifact{Data: data, MIME: "audio/mpeg"}
	c.mu.Lock()
	prev := c.artifact
	c.artifact = art
	c.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
	return art
}
