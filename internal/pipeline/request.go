package pipeline

// Backend selects the conversion path. The choice is made once during
// validation and never re-evaluated mid-flight.
type Backend string

const (
	// BackendAsync submits a job and polls it to completion. The default.
	BackendAsync Backend = "async-job"
	// BackendSync uses the one-shot endpoint that returns audio directly.
	BackendSync Backend = "sync-hf"
)

// FileInput is an uploaded file to convert.
type FileInput struct {
	Name string
	Data []byte
}

// Request describes a single conversion. Exactly one of Text/File must be
// set. When UseAI is set, the input is first rewritten by the chat model
// following Instruction, which requires an API key.
type Request struct {
	Text        string
	File        *FileInput
	UseAI       bool
	Instruction string
	Backend     Backend
}

// Events are optional observation hooks for one conversion. OnProgress
// receives job percentages (async path only; values are not monotonic, last
// wins). OnAIText receives the AI-processed text as soon as it is available,
// before conversion begins, so it stays observable even when the conversion
// itself later fails.
type Events struct {
	OnProgress func(percent int)
	OnAIText   func(text string)
}

// plan is the validated form of a Request: the branch is fixed and the input
// is known to be usable before any network call happens.
type plan struct {
	text        string
	file        *FileInput
	instruction string
	backend     Backend
}
