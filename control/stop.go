// Package control carries out-of-band commands into a capture session:
// the stop signal, and the OSC and MQTT transports that set it and
// report session status back to the controller.
package control

import "sync"

// StopSignal is a one-way flag telling the acquisition loop to finish.
// Set is idempotent and safe from any goroutine; IsSet never blocks.
// A signal that is never set is a valid steady state.
type StopSignal struct {
	mu     sync.Mutex
	set    bool
	reason string
	done   chan struct{}
}

// NewStopSignal creates an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Set raises the signal.
func (s *StopSignal) Set() {
	s.SetBy("")
}

// SetBy raises the signal and records who raised it. Only the first call
// records a reason; it reports whether this call raised the signal.
func (s *StopSignal) SetBy(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return false
	}
	s.set = true
	s.reason = reason
	close(s.done)
	return true
}

// IsSet reports whether the signal has been raised.
func (s *StopSignal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Reason returns the reason recorded by the first SetBy.
func (s *StopSignal) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done returns a channel closed when the signal is raised.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}
