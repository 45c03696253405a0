package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/gate-controller/internal/logic"
)

// FakePort is a test double that returns scripted sensor samples and
// records every actuator write. It is safe for concurrent use, since the
// ticker samples while the control loop drives.
type FakePort struct {
	mu sync.Mutex

	// samples contains scripted inputs to return.
	// Each call to Sample() consumes the next one; the last repeats.
	samples []logic.Inputs
	index   int

	driven []logic.Outputs

	sampleErr error
	driveErr  error
	closed    bool
}

// NewFakePort creates a FakePort with the given scripted samples.
func NewFakePort(samples ...logic.Inputs) *FakePort {
	return &FakePort{samples: samples}
}

// Sample returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakePort) Sample() (logic.Inputs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sampleErr != nil {
		return logic.Inputs{}, f.sampleErr
	}
	if len(f.samples) == 0 {
		return logic.Inputs{}, errors.New("no samples configured")
	}

	s := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}
	return s, nil
}

// Drive records the outputs.
func (f *FakePort) Drive(out logic.Outputs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.driveErr != nil {
		return f.driveErr
	}
	f.driven = append(f.driven, out)
	return nil
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Set replaces the script with a single sample returned from now on.
func (f *FakePort) Set(in logic.Inputs) {
	f.mu.Lock()
	f.samples = []logic.Inputs{in}
	f.index = 0
	f.mu.Unlock()
}

// SetSampleError makes every following Sample fail with err (nil clears it).
func (f *FakePort) SetSampleError(err error) {
	f.mu.Lock()
	f.sampleErr = err
	f.mu.Unlock()
}

// SetDriveError makes every following Drive fail with err (nil clears it).
func (f *FakePort) SetDriveError(err error) {
	f.mu.Lock()
	f.driveErr = err
	f.mu.Unlock()
}

// Driven returns a copy of every output pattern written so far.
func (f *FakePort) Driven() []logic.Outputs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Outputs(nil), f.driven...)
}

// Last returns the most recent output pattern, or all-off if none was written.
func (f *FakePort) Last() logic.Outputs {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.driven) == 0 {
		return logic.Outputs{}
	}
	return f.driven[len(f.driven)-1]
}

// Closed reports whether Close was called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
