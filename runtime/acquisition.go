package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/skelcap/control"
	"github.com/pithecene-io/skelcap/iox"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/metrics"
	"github.com/pithecene-io/skelcap/skeleton"
	"github.com/pithecene-io/skelcap/tracking"
	"github.com/pithecene-io/skelcap/types"
)

// State is the acquisition state.
type State int

const (
	// StateInit acquires the backend session and tracker.
	StateInit State = iota
	// StateRunning polls the backend once per tick.
	StateRunning
	// StateDraining releases the tracker and session.
	StateDraining
	// StateDone is the successful terminal state.
	StateDone
	// StateFailed is the absorbing failure state.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Budget bounds a live acquisition. Zero fields are unbounded.
type Budget struct {
	// MaxFrames caps the number of polls.
	MaxFrames int
	// MaxDuration caps wall-clock time spent running.
	MaxDuration time.Duration
}

// Frame ceilings for live capture.
const (
	LiveMaxFrames         = 1800   // one minute at 30 fps
	ExtendedLiveMaxFrames = 108000 // one hour at 30 fps
)

// LiveBudget is the default live budget.
func LiveBudget() Budget { return Budget{MaxFrames: LiveMaxFrames} }

// ExtendedLiveBudget is the budget for long unattended sessions.
func ExtendedLiveBudget() Budget { return Budget{MaxFrames: ExtendedLiveMaxFrames} }

// ReplayBudget is unbounded: replay runs to end of stream.
func ReplayBudget() Budget { return Budget{} }

// Unbounded reports whether the budget never ends a session.
func (b Budget) Unbounded() bool {
	return b.MaxFrames <= 0 && b.MaxDuration <= 0
}

// StopReason records why RUNNING ended.
type StopReason string

const (
	StopNone        StopReason = ""
	StopSignal      StopReason = "stop_signal"
	StopFrameBudget StopReason = "frame_budget"
	StopTimeBudget  StopReason = "time_budget"
	StopEndOfStream StopReason = "end_of_stream"
	StopCanceled    StopReason = "canceled"
	StopError       StopReason = "error"
)

// Progress is reported after every tick.
type Progress struct {
	State   State
	Ticks   int
	Frames  int
	Elapsed time.Duration
}

// AcquisitionConfig configures one acquisition.
type AcquisitionConfig struct {
	Backend tracking.Backend
	Source  tracking.Source
	Budget  Budget
	// Stop is polled once per tick. Nil means no stop channel (replay).
	Stop *control.StopSignal
	// Notifier receives RecordingStarted for live sessions.
	Notifier control.Notifier
	// Logger defaults to a nop logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
	// Now defaults to time.Now.
	Now func() time.Time
	// OnProgress is called from the acquisition goroutine after each tick.
	OnProgress func(Progress)
}

// AcquisitionResult is the outcome of Acquisition.Run.
type AcquisitionResult struct {
	// Buffer is frozen and holds every accepted snapshot.
	Buffer     *skeleton.Buffer
	FinalState State
	// Ticks is the number of polls performed.
	Ticks      int
	StopReason StopReason
	// Err is an *AcquisitionError when FinalState is StateFailed.
	Err error
	// Duration is the time spent in RUNNING.
	Duration time.Duration
}

// Acquisition drives the INIT, RUNNING, DRAINING and DONE/FAILED state
// machine. It owns the backend session, the tracker and the buffer; the
// only state shared with other goroutines is the stop signal and the
// current state.
type Acquisition struct {
	config AcquisitionConfig
	logger *log.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State

	session *iox.OnceCloser
	tracker *iox.OnceCloser
}

// NewAcquisition creates an acquisition in StateInit.
func NewAcquisition(config AcquisitionConfig) *Acquisition {
	a := &Acquisition{
		config: config,
		logger: config.Logger,
		now:    config.Now,
		state:  StateInit,
	}
	if a.logger == nil {
		a.logger = log.NewNopLogger()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.config.Notifier == nil {
		a.config.Notifier = control.NopNotifier{}
	}
	return a
}

// State returns the current state. Safe from any goroutine.
func (a *Acquisition) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Acquisition) transition(to State) {
	a.mu.Lock()
	from := a.state
	if from == StateFailed || from == StateDone {
		a.mu.Unlock()
		return
	}
	a.state = to
	a.mu.Unlock()
	a.logger.Debug("acquisition state", map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}

func (a *Acquisition) live() bool {
	return a.config.Source.Mode == types.SessionModeLive
}

// Run executes the acquisition to completion. The tracker and session are
// released exactly once on every path, and the returned buffer is frozen.
func (a *Acquisition) Run(ctx context.Context) *AcquisitionResult {
	capacity := a.config.Budget.MaxFrames
	if capacity <= 0 || capacity > LiveMaxFrames {
		capacity = LiveMaxFrames
	}
	result := &AcquisitionResult{Buffer: skeleton.NewBuffer(capacity)}
	defer result.Buffer.Freeze()

	session, tracker, err := a.setup(ctx)
	if err != nil {
		a.fail(result, err)
		a.release()
		result.FinalState = a.State()
		return result
	}

	a.transition(StateRunning)
	a.logger.Info("recording started", map[string]any{
		"max_frames":   a.config.Budget.MaxFrames,
		"max_duration": a.config.Budget.MaxDuration.String(),
	})
	if a.live() {
		a.config.Notifier.RecordingStarted(ctx)
	}

	start := a.now()
	a.loop(ctx, session, tracker, result, start)
	result.Duration = a.now().Sub(start)

	if result.Err == nil {
		a.transition(StateDraining)
	}
	a.release()
	a.transition(StateDone)
	result.FinalState = a.State()

	a.logger.Info("acquisition finished", map[string]any{
		"state":       result.FinalState.String(),
		"ticks":       result.Ticks,
		"frames":      result.Buffer.Len(),
		"stop_reason": string(result.StopReason),
	})
	return result
}

// setup performs INIT: open, calibration, tracker, cameras.
func (a *Acquisition) setup(ctx context.Context) (tracking.Session, tracking.Tracker, error) {
	mode := a.config.Source.Mode
	backend := a.config.Backend

	session, err := backend.Open(ctx, a.config.Source)
	if err != nil {
		return nil, nil, &AcquisitionError{Stage: StageOpen, Mode: mode, Err: err}
	}
	a.session = iox.NewOnceCloser(session)

	if err := session.Calibration(); err != nil {
		return nil, nil, &AcquisitionError{Stage: StageCalibration, Mode: mode, Err: err}
	}

	tracker, err := backend.NewTracker(session)
	if err != nil {
		return nil, nil, &AcquisitionError{Stage: StageTracker, Mode: mode, Err: err}
	}
	a.tracker = iox.NewOnceCloser(tracker)

	if starter, ok := session.(tracking.CameraStarter); ok && a.live() {
		if err := starter.StartCameras(ctx); err != nil {
			return nil, nil, &AcquisitionError{Stage: StageCameras, Mode: mode, Err: err}
		}
	}
	return session, tracker, nil
}

// loop runs RUNNING until a stop condition or failure.
func (a *Acquisition) loop(
	ctx context.Context,
	session tracking.Session,
	tracker tracking.Tracker,
	result *AcquisitionResult,
	start time.Time,
) {
	mode := a.config.Source.Mode
	budget := a.config.Budget
	collector := a.config.Collector

	for {
		if a.config.Stop != nil && a.config.Stop.IsSet() {
			collector.IncStopSignal()
			a.logger.Info("stop signal received", map[string]any{
				"reason": a.config.Stop.Reason(),
				"ticks":  result.Ticks,
			})
			result.StopReason = StopSignal
			return
		}
		if budget.MaxFrames > 0 && result.Ticks >= budget.MaxFrames {
			result.StopReason = StopFrameBudget
			return
		}
		if budget.MaxDuration > 0 && a.now().Sub(start) >= budget.MaxDuration {
			result.StopReason = StopTimeBudget
			return
		}
		if ctx.Err() != nil {
			a.cancelled(result, ctx.Err())
			return
		}

		poll, err := session.PollNext(ctx)
		result.Ticks++
		collector.IncPoll()
		if err != nil {
			if ctx.Err() != nil {
				a.cancelled(result, err)
				return
			}
			a.fail(result, &AcquisitionError{Stage: StagePoll, Mode: mode, Err: err})
			return
		}

		switch poll.Outcome {
		case tracking.OutcomeEndOfStream:
			result.StopReason = StopEndOfStream
			return
		case tracking.OutcomeError:
			a.fail(result, &AcquisitionError{Stage: StagePoll, Mode: mode,
				Err: fmt.Errorf("poll reported an error without detail")})
			return
		}

		if err := a.track(ctx, tracker, poll.Capture, result); err != nil {
			a.fail(result, err)
			return
		}
		if a.config.OnProgress != nil {
			a.config.OnProgress(Progress{
				State:   StateRunning,
				Ticks:   result.Ticks,
				Frames:  result.Buffer.Len(),
				Elapsed: a.now().Sub(start),
			})
		}
	}
}

// track submits one capture and appends the first body, if any.
func (a *Acquisition) track(
	ctx context.Context,
	tracker tracking.Tracker,
	capture *tracking.Capture,
	result *AcquisitionResult,
) error {
	mode := a.config.Source.Mode
	collector := a.config.Collector
	if capture == nil || !capture.HasDepth {
		collector.IncFrameWithoutDepth()
		return nil
	}
	if err := tracker.Submit(ctx, capture); err != nil {
		return &AcquisitionError{Stage: StageEnqueue, Mode: mode, Err: err}
	}
	snapshot, err := tracker.PopSkeleton(ctx)
	if err != nil {
		return &AcquisitionError{Stage: StagePop, Mode: mode, Err: err}
	}
	if snapshot == nil {
		collector.IncFrameWithoutBody()
		return nil
	}
	result.Buffer.Append(*snapshot)
	collector.IncSkeletonAccepted()
	return nil
}

func (a *Acquisition) cancelled(result *AcquisitionResult, err error) {
	a.logger.Warn("acquisition interrupted, draining", map[string]any{
		"error": err.Error(),
		"ticks": result.Ticks,
	})
	result.StopReason = StopCanceled
}

func (a *Acquisition) fail(result *AcquisitionResult, err error) {
	a.config.Collector.IncBackendError()
	a.logger.Error("acquisition failed", map[string]any{
		"error": err.Error(),
	})
	result.Err = err
	if result.StopReason == StopNone {
		result.StopReason = StopError
	}
	a.transition(StateFailed)
}

// release closes the tracker, then the session. Both are wrapped in
// OnceCloser so repeated calls are harmless.
func (a *Acquisition) release() {
	a.closeHandle("tracker", a.tracker)
	a.closeHandle("session", a.session)
}

func (a *Acquisition) closeHandle(name string, c *iox.OnceCloser) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		a.logger.Warn("release failed", map[string]any{
			"handle": name,
			"error":  err.Error(),
		})
	}
}
