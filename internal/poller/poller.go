// Package poller drives an asynchronous conversion job to a terminal state
// by polling its progress on a fixed interval.
package poller

import (
	"context"
	"time"

	"github.com/vaani-tts/vaani/internal/ttsapi"
)

const defaultInterval = time.Second

// JobError reports a job that the backend moved to the error status. The
// message is passed through verbatim when the backend supplied one.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conversion failed"
}

// ProgressFetcher fetches the current status of a job.
type ProgressFetcher interface {
	Progress(ctx context.Context, jobID string) (ttsapi.Progress, error)
}

// ProgressFunc receives percent updates. It is called at most once per poll
// tick and only when the backend reported a numeric percent. Values are not
// guaranteed to increase; the last reported value wins.
type ProgressFunc func(percent int)

// Poller polls jobs on a fixed interval.
type Poller struct {
	fetcher  ProgressFetcher
	interval time.Duration
}

// New creates a Poller. If interval is <= 0, it defaults to 1s.
func New(fetcher ProgressFetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{fetcher: fetcher, interval: interval}
}

// Wait polls jobID until it reaches a terminal state, invoking onProgress
// (which may be nil) on each tick that carries a percent. It returns nil once
// the job is finished and the audio can be downloaded, a *JobError when the
// backend reports the job failed, and the transport error verbatim when a
// tick fails — a failed tick is fatal, never retried.
//
// Ticks are strictly sequential: the next tick is not issued until the
// previous response has been fully processed. The ticker is stopped before
// Wait returns, so no tick fires after a terminal result or after the caller
// abandons the wait by cancelling ctx.
func (p *Poller) Wait(ctx context.Context, jobID string, onProgress ProgressFunc) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		progress, err := p.fetcher.Progress(ctx, jobID)
		if err != nil {
			return err
		}

		// Percent is reported before status is inspected, so a terminal
		// tick still surfaces its final percent.
		if progress.Percent != nil && onProgress != nil {
			onProgress(*progress.Percent)
		}

		switch progress.Status {
		case ttsapi.StatusFinished:
			return nil
		case ttsapi.StatusError:
			return &JobError{JobID: jobID, Message: progress.Error}
		}
		// Anything else, including statuses this client does not know,
		// is a non-terminal tick.
	}
}

// Watch is a handle to a polling loop running in its own goroutine.
type Watch struct {
	stop context.CancelFunc
	done chan struct{}
	err  error
}

// Go starts polling jobID in the background and returns a handle that exposes
// completion and cancellation. Exactly one terminal result is ever produced.
func (p *Poller) Go(ctx context.Context, jobID string, onProgress ProgressFunc) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{stop: cancel, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		defer cancel()
		w.err = p.Wait(ctx, jobID, onProgress)
	}()
	return w
}

// Done is closed once polling has terminated and no further tick will fire.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Err returns the terminal result. Valid only after Done is closed.
func (w *Watch) Err() error {
	return w.err
}

// Stop abandons the watch. The pending timer is released; any tick already in
// flight completes before Done is closed, and none follows it.
func (w *Watch) Stop() {
	w.stop()
}
