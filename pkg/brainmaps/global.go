package brainmaps

import (
	"fmt"
	"sync"
)

// defaults holds the process-wide default session and volume. Each slot is
// overwritten by every set.
var defaults struct {
	mu      sync.RWMutex
	session *Session
	volume  string
}

// SetGlobalVolume sets the volume used when WithVolume is not given. The
// value is validated when a call uses it; only emptiness is rejected here.
func SetGlobalVolume(volume string) error {
	if volume == "" {
		return fmt.Errorf("%w: volume ID must not be empty", ErrConfiguration)
	}

	defaults.mu.Lock()
	defer defaults.mu.Unlock()

	defaults.volume = volume

	return nil
}

// GlobalVolume returns the default volume, or "" if none is set.
func GlobalVolume() string {
	defaults.mu.RLock()
	defer defaults.mu.RUnlock()

	return defaults.volume
}

// SetDefaultSession sets the session used when WithSession is not given.
// Nil clears it.
func SetDefaultSession(s *Session) {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()

	defaults.session = s
}

// DefaultSession returns the default session, or nil if none is set.
func DefaultSession() *Session {
	defaults.mu.RLock()
	defer defaults.mu.RUnlock()

	return defaults.session
}

// resetDefaults clears both slots. Tests only.
func resetDefaults() {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()

	defaults.session = nil
	defaults.volume = ""
}
