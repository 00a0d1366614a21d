package tracking

import (
	"context"
	"sync"

	"github.com/pithecene-io/skelcap/types"
)

// StubFrame scripts one poll of a StubBackend session.
type StubFrame struct {
	// Bodies are returned by the tracker for this capture.
	Bodies []types.SkeletonSnapshot
	// NoDepth marks a capture without a depth image.
	NoDepth bool
	// EOS ends the stream at this poll.
	EOS bool
	// Err fails the poll itself.
	Err error
	// SubmitErr and PopErr fail the tracker for this capture.
	SubmitErr error
	PopErr    error
	// Before runs at the start of the poll.
	Before func()
}

// StubBackend is a scripted in-memory backend. Frames are replayed in
// order; once they run out the session reports end of stream, or starts
// over when Repeat is set. It is safe for concurrent use.
type StubBackend struct {
	Frames []StubFrame
	Repeat bool

	OpenErr        error
	CalibrationErr error
	TrackerErr     error
	CamerasErr     error

	mu             sync.Mutex
	source         Source
	opens          int
	polls          int
	sessionCloses  int
	trackerCloses  int
	camerasStarted int
}

// NewStubBackend returns a stub replaying frames once.
func NewStubBackend(frames ...StubFrame) *StubBackend {
	return &StubBackend{Frames: frames}
}

// BodyFrames returns one single-body frame per snapshot.
func BodyFrames(snapshots ...types.SkeletonSnapshot) []StubFrame {
	frames := make([]StubFrame, len(snapshots))
	for i, s := range snapshots {
		frames[i] = StubFrame{Bodies: []types.SkeletonSnapshot{s}}
	}
	return frames
}

// Open implements Backend.
func (b *StubBackend) Open(_ context.Context, src Source) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.source = src
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.opens++
	return &stubSession{backend: b}, nil
}

// NewTracker implements Backend.
func (b *StubBackend) NewTracker(Session) (Tracker, error) {
	if b.TrackerErr != nil {
		return nil, b.TrackerErr
	}
	return &stubTracker{backend: b}, nil
}

// Source returns the source passed to the last Open.
func (b *StubBackend) Source() Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// Opens returns the number of successful opens.
func (b *StubBackend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Polls returns the number of PollNext calls.
func (b *StubBackend) Polls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}

// SessionCloses returns the number of session Close calls.
func (b *StubBackend) SessionCloses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionCloses
}

// TrackerCloses returns the number of tracker Close calls.
func (b *StubBackend) TrackerCloses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trackerCloses
}

// CamerasStarted returns the number of StartCameras calls.
func (b *StubBackend) CamerasStarted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.camerasStarted
}

type stubSession struct {
	backend *StubBackend
	next    int
	closed  bool
}

func (s *stubSession) Calibration() error {
	return s.backend.CalibrationErr
}

func (s *stubSession) StartCameras(context.Context) error {
	b := s.backend
	b.mu.Lock()
	b.camerasStarted++
	b.mu.Unlock()
	return b.CamerasErr
}

func (s *stubSession) PollNext(ctx context.Context) (Poll, error) {
	b := s.backend
	b.mu.Lock()
	b.polls++
	closed := s.closed
	b.mu.Unlock()
	if closed {
		return Poll{Outcome: OutcomeError}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Poll{Outcome: OutcomeError}, err
	}

	if s.next >= len(b.Frames) {
		if !b.Repeat || len(b.Frames) == 0 {
			return Poll{Outcome: OutcomeEndOfStream}, nil
		}
		s.next = 0
	}
	f := b.Frames[s.next]
	seq := int64(s.next)
	s.next++

	if f.Before != nil {
		f.Before()
	}
	switch {
	case f.Err != nil:
		return Poll{Outcome: OutcomeError}, f.Err
	case f.EOS:
		return Poll{Outcome: OutcomeEndOfStream}, nil
	}
	c := &Capture{
		Seq:           seq,
		TimestampUsec: seq * 33333,
		HasDepth:      !f.NoDepth,
		Bodies:        f.Bodies,
	}
	if f.SubmitErr != nil {
		c.fault = &StageError{Stage: types.BridgeStageEnqueue, Err: f.SubmitErr}
	} else if f.PopErr != nil {
		c.fault = &StageError{Stage: types.BridgeStagePop, Err: f.PopErr}
	}
	return Poll{Outcome: OutcomeData, Capture: c}, nil
}

func (s *stubSession) Close() error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionCloses++
	s.closed = true
	return nil
}

// stubTracker counts closes on the backend.
type stubTracker struct {
	backend *StubBackend
	queueTracker
}

func (t *stubTracker) Close() error {
	b := t.backend
	b.mu.Lock()
	b.trackerCloses++
	b.mu.Unlock()
	return t.queueTracker.Close()
}
