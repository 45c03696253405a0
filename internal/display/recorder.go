package display

import (
	"errors"
	"sync"
)

// Frame is one Show call captured by Recorder.
type Frame struct {
	Line1 string
	Line2 string
}

// Recorder is a test double that records shown frames.
type Recorder struct {
	mu      sync.Mutex
	frames  []Frame
	showErr error
	closed  bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Show implements Sink.Show.
func (r *Recorder) Show(line1, line2 string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.showErr != nil {
		return r.showErr
	}
	r.frames = append(r.frames, Frame{Line1: line1, Line2: line2})
	return nil
}

// Close implements Sink.Close.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Fail makes every following Show return an error.
func (r *Recorder) Fail() {
	r.mu.Lock()
	r.showErr = errors.New("display unavailable")
	r.mu.Unlock()
}

// Frames returns a copy of every recorded frame.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
