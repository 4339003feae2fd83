package transcribe

import (
	"context"
	"sync"
)

// Result is the raw engine output for one audio file: spans with timestamps
// local to that file, plus the detected language.
type Result struct {
	Spans    []Span
	Language string
	Duration float64 // seconds, 0 if the engine doesn't report it
}

// Engine is the speech-to-text capability. language is an optional hint
// ("" = auto-detect). Implementations must be safe for concurrent use up to
// the scheduler's worker count.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
	Model() string
}

// Loader initializes the engine at most once per process. First use wins;
// concurrent first uses block until initialization finishes.
type Loader struct {
	mu     sync.Mutex
	engine Engine
	err    error
	done   bool
	init   func() (Engine, error)
}

// NewLoader wraps an engine constructor in a lazy once-only loader.
func NewLoader(init func() (Engine, error)) *Loader {
	return &Loader{init: init}
}

// Get returns the process-wide engine, initializing it on first call. An
// initialization error is sticky: every later call returns it.
func (l *Loader) Get() (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.engine, l.err = l.init()
		l.done = true
	}
	return l.engine, l.err
}

// Loaded reports whether the engine has been initialized, for health checks.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done && l.err == nil
}
