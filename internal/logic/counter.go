package logic

// TimeoutCounter counts ticks spent in a motion state. It saturates at
// TimeoutThreshold and never wraps.
type TimeoutCounter uint32

// Tick advances the counter by one ticker firing and returns the new value.
// A direction command resets it regardless of motion; otherwise it counts
// while in motion and resets at rest.
func (c TimeoutCounter) Tick(inMotion, commandAsserted bool) TimeoutCounter {
	if commandAsserted || !inMotion {
		return 0
	}
	if c >= TimeoutThreshold {
		return TimeoutThreshold
	}
	return c + 1
}

// HasTimedOut reports whether the motion has lasted TimeoutThreshold ticks.
func (c TimeoutCounter) HasTimedOut() bool {
	return c >= TimeoutThreshold
}
