package api

import "sync"

// jobState is a daemon-local job as reported by /progress. The status
// vocabulary matches the conversion backend's so both read the same way.
type jobState struct {
	Status  string
	Percent *int
	Message string
	Err     string
}

type jobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*jobState
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*jobState)}
}

func (r *jobRegistry) create(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &jobState{Status: "queued"}
}

func (r *jobRegistry) setRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = "running"
	}
}

func (r *jobRegistry) setPercent(id string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		p := percent
		j.Percent = &p
	}
}

func (r *jobRegistry) setMessage(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Message = message
	}
}

func (r *jobRegistry) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = "finished"
		p := 100
		j.Percent = &p
	}
}

func (r *jobRegistry) fail(id, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = "error"
		j.Err = errMsg
	}
}

// get returns a copy so callers never observe a job mid-update.
func (r *jobRegistry) get(id string) (jobState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return jobState{}, false
	}
	out := *j
	if j.Percent != nil {
		p := *j.Percent
		out.Percent = &p
	}
	return out, true
}
