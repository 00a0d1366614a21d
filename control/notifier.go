package control

import (
	"context"
	"sync"
)

// Notifier reports session milestones to a controller. Delivery is best
// effort: implementations log failures and never block the session.
type Notifier interface {
	RecordingStarted(ctx context.Context)
	ProgramComplete(ctx context.Context, success bool, report string)
}

// Transport is a bidirectional control channel: it raises the current
// session's stop signal, requests new sessions in idle mode, and carries
// status notifications back.
type Transport interface {
	Notifier
	// Start binds or connects and begins receiving in the background.
	Start(ctx context.Context) error
	// SetStop swaps the signal raised by end-of-recording commands.
	SetStop(stop *StopSignal)
	// OnStart registers the handler for start-recording commands.
	OnStart(fn func(outputPath string))
	Close() error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

// RecordingStarted does nothing.
func (NopNotifier) RecordingStarted(context.Context) {}

// ProgramComplete does nothing.
func (NopNotifier) ProgramComplete(context.Context, bool, string) {}

// MultiNotifier fans notifications out to several notifiers in order.
type MultiNotifier []Notifier

// RecordingStarted notifies every member.
func (m MultiNotifier) RecordingStarted(ctx context.Context) {
	for _, n := range m {
		n.RecordingStarted(ctx)
	}
}

// ProgramComplete notifies every member.
func (m MultiNotifier) ProgramComplete(ctx context.Context, success bool, report string) {
	for _, n := range m {
		n.ProgramComplete(ctx, success, report)
	}
}

// Command names shared by every transport.
const (
	CommandEndRecording   = "end_recording"
	CommandStartRecording = "start_recording"
)

// commandTarget holds the mutable stop signal and start handler shared by
// the transports.
type commandTarget struct {
	mu      sync.Mutex
	stop    *StopSignal
	onStart func(string)
}

func (c *commandTarget) SetStop(stop *StopSignal) {
	c.mu.Lock()
	c.stop = stop
	c.mu.Unlock()
}

func (c *commandTarget) OnStart(fn func(outputPath string)) {
	c.mu.Lock()
	c.onStart = fn
	c.mu.Unlock()
}

// endRecording raises the current stop signal. It reports false when no
// session is listening.
func (c *commandTarget) endRecording(reason string) bool {
	c.mu.Lock()
	stop := c.stop
	c.mu.Unlock()
	if stop == nil {
		return false
	}
	stop.SetBy(reason)
	return true
}

// startRecording hands outputPath to the start handler. It reports false
// when no handler is registered.
func (c *commandTarget) startRecording(outputPath string) bool {
	c.mu.Lock()
	fn := c.onStart
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(outputPath)
	return true
}
