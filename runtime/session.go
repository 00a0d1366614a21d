package runtime

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/skelcap/adapter"
	"github.com/pithecene-io/skelcap/control"
	"github.com/pithecene-io/skelcap/export"
	"github.com/pithecene-io/skelcap/lode"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/metrics"
	"github.com/pithecene-io/skelcap/skeleton"
	"github.com/pithecene-io/skelcap/tracking"
	"github.com/pithecene-io/skelcap/types"
)

// publishTimeout bounds the adapter publish after a session.
const publishTimeout = 30 * time.Second

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionConfig configures one capture session.
type SessionConfig struct {
	// SessionID defaults to NewSessionID().
	SessionID string
	// Source selects live or replay capture. Source.SessionID is filled in
	// from SessionID.
	Source tracking.Source
	// OutputPath selects the export back end by extension.
	OutputPath string
	// Overwrite allows replacing an existing output file.
	Overwrite bool
	Budget    Budget
	// ExportPartial exports whatever was buffered when acquisition fails
	// after setup.
	ExportPartial bool

	Backend    tracking.Backend
	Dispatcher *export.Dispatcher
	// Hierarchy defaults to skeleton.Default().
	Hierarchy *skeleton.Hierarchy

	// Stop may be nil for sessions that only end by budget or stream end.
	Stop     *control.StopSignal
	Notifier control.Notifier
	// Archive receives the written files. Optional.
	Archive lode.Archiver
	// Publisher receives the session-completed event. Optional.
	Publisher adapter.Adapter

	Collector *metrics.Collector
	// Logger defaults to a session logger on stderr, or on LogOutput when
	// set.
	Logger     *log.Logger
	LogOutput  io.Writer
	OnProgress func(Progress)
	Now        func() time.Time
}

// SessionResult is the outcome of Session.Execute.
type SessionResult struct {
	Meta    types.SessionMeta
	Outcome types.OutcomeStatus
	// Report holds the human-readable diagnostics; empty on success.
	Report     *Report
	Frames     int
	Ticks      int
	StopReason StopReason
	FinalState State
	Duration   time.Duration
	OutputPath string
	// Export is nil when no back end ran or it failed.
	Export        *export.Result
	ArchivedFiles []string
	// Err is the first error that decided the outcome.
	Err error
}

// Success reports whether the session captured and exported cleanly.
func (r *SessionResult) Success() bool {
	return r.Outcome == types.OutcomeSuccess
}

// ExitCode returns the process exit code for the outcome.
func (r *SessionResult) ExitCode() int {
	return r.Outcome.ExitCode()
}

// Session runs acquisition followed by export for one output file.
type Session struct {
	config SessionConfig
	meta   types.SessionMeta
	logger *log.Logger
	now    func() time.Time
}

// NewSession creates a session, filling in defaults.
func NewSession(config SessionConfig) *Session {
	if config.SessionID == "" {
		config.SessionID = NewSessionID()
	}
	config.Source.SessionID = config.SessionID
	if config.Hierarchy == nil {
		config.Hierarchy = skeleton.Default()
	}
	if config.Notifier == nil {
		config.Notifier = control.NopNotifier{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	meta := types.SessionMeta{
		SessionID: config.SessionID,
		Mode:      config.Source.Mode,
		Source:    config.Source.InputPath,
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(&meta)
		if config.LogOutput != nil {
			logger = logger.WithOutput(config.LogOutput)
		}
	}
	return &Session{config: config, meta: meta, logger: logger, now: config.Now}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.meta.SessionID
}

// Execute runs the session end to end. It never returns a nil result;
// failures are reported through Outcome, Report and Err.
//
// Execution flow:
//  1. Validate the output kind (no back end runs on failure)
//  2. Check the output path
//  3. Acquire frames
//  4. Export the buffer
//  5. Archive the written files
//  6. Notify the controller and publish the completion event
func (s *Session) Execute(ctx context.Context) *SessionResult {
	start := s.now()
	cfg := s.config
	cfg.Collector.IncSessionStarted()

	result := &SessionResult{
		Meta:       s.meta,
		Outcome:    types.OutcomeSuccess,
		Report:     &Report{},
		OutputPath: cfg.OutputPath,
	}
	s.logger.Info("starting session", map[string]any{
		"output": cfg.OutputPath,
		"input":  cfg.Source.InputPath,
	})

	// Post-acquisition steps survive cancellation so an interrupted
	// recording is still written out.
	tail := context.WithoutCancel(ctx)

	kind, err := cfg.Dispatcher.Validate(cfg.OutputPath)
	if err != nil {
		s.invalidOutput(result, err)
		return s.finish(tail, result, start)
	}
	if err := export.PrepareOutput(cfg.OutputPath, cfg.Overwrite); err != nil {
		s.invalidOutput(result, err)
		return s.finish(tail, result, start)
	}

	acq := NewAcquisition(AcquisitionConfig{
		Backend:    cfg.Backend,
		Source:     cfg.Source,
		Budget:     cfg.Budget,
		Stop:       cfg.Stop,
		Notifier:   cfg.Notifier,
		Logger:     s.logger,
		Collector:  cfg.Collector,
		Now:        s.now,
		OnProgress: cfg.OnProgress,
	})
	acqResult := acq.Run(ctx)
	result.Frames = acqResult.Buffer.Len()
	result.Ticks = acqResult.Ticks
	result.StopReason = acqResult.StopReason
	result.FinalState = acqResult.FinalState

	if acqResult.Err != nil {
		result.Err = acqResult.Err
		result.Outcome = DetermineOutcome(acqResult.Err)
		result.Report.Add(diagnostic(acqResult.Err))
	}
	if !s.shouldExport(acqResult) {
		return s.finish(tail, result, start)
	}

	exported, err := cfg.Dispatcher.Dispatch(tail, cfg.OutputPath, acqResult.Buffer, cfg.Hierarchy)
	if err != nil {
		cfg.Collector.IncExportFailure(string(kind))
		s.logger.Error("export failed", map[string]any{
			"kind":  string(kind),
			"error": exportDetail(err),
		})
		result.Report.Add(err.Error())
		if result.Outcome == types.OutcomeSuccess {
			result.Outcome = types.OutcomeExportError
			result.Err = err
		}
		return s.finish(tail, result, start)
	}
	cfg.Collector.IncExportSuccess(string(kind))
	result.Export = exported
	s.logger.Info("export written", map[string]any{
		"kind":   string(kind),
		"frames": exported.Frames,
		"files":  exported.Files,
	})

	s.archive(tail, result, start)
	return s.finish(tail, result, start)
}

// shouldExport reports whether the buffer goes to a back end. A setup
// failure never exports; a capture failure exports only when partial
// export is enabled.
func (s *Session) shouldExport(r *AcquisitionResult) bool {
	switch r.FinalState {
	case StateDone:
		return true
	case StateFailed:
		return s.config.ExportPartial && IsCaptureError(r.Err)
	default:
		return false
	}
}

func (s *Session) invalidOutput(result *SessionResult, err error) {
	result.Outcome = types.OutcomeInvalidOutput
	result.Err = err
	switch {
	case errors.Is(err, export.ErrInvalidOutputType):
		result.Report.Add(export.ErrInvalidOutputType.Error())
	case errors.Is(err, export.ErrOutputExists):
		result.Report.Add(export.ErrOutputExists.Error())
	default:
		result.Report.Add(err.Error())
	}
	s.logger.Error("output rejected", map[string]any{
		"output": s.config.OutputPath,
		"error":  err.Error(),
	})
}

// archive copies the exported files to the archive. Archive failures are
// logged and counted but do not change the outcome.
func (s *Session) archive(ctx context.Context, result *SessionResult, start time.Time) {
	if s.config.Archive == nil || result.Export == nil {
		return
	}
	rec := lode.SessionRecord{
		SessionID:   result.Meta.SessionID,
		Mode:        string(result.Meta.Mode),
		Day:         lode.DeriveDay(start),
		OutputPath:  result.OutputPath,
		ExportKind:  string(result.Export.Kind),
		Outcome:     string(result.Outcome),
		StopReason:  string(result.StopReason),
		Frames:      result.Frames,
		Ticks:       result.Ticks,
		Duration:    s.now().Sub(start),
		StartedAt:   start,
		CompletedAt: s.now(),
		Report:      result.Report.Messages(),
	}
	keys, err := s.config.Archive.ArchiveSession(ctx, rec, result.Export.Files)
	for range keys {
		s.config.Collector.IncArchiveWriteSuccess()
	}
	if err != nil {
		s.config.Collector.IncArchiveWriteFailure()
		s.logger.Warn("archive failed", map[string]any{
			"backend": s.config.Archive.Backend(),
			"error":   err.Error(),
		})
	}
	result.ArchivedFiles = keys
}

// finish records metrics, notifies the controller and publishes the
// completion event.
func (s *Session) finish(ctx context.Context, result *SessionResult, start time.Time) *SessionResult {
	result.Duration = s.now().Sub(start)
	if result.Success() {
		s.config.Collector.IncSessionCompleted()
	} else {
		s.config.Collector.IncSessionFailed()
	}

	s.config.Notifier.ProgramComplete(ctx, result.Success(), result.Report.String())
	s.publish(ctx, result)

	s.logger.Info("session finished", map[string]any{
		"outcome":     string(result.Outcome),
		"frames":      result.Frames,
		"ticks":       result.Ticks,
		"stop_reason": string(result.StopReason),
		"duration":    result.Duration.String(),
	})
	return result
}

func (s *Session) publish(ctx context.Context, result *SessionResult) {
	if s.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.config.Publisher.Publish(ctx, NewCompletedEvent(result, s.now())); err != nil {
		s.logger.Warn("adapter publish failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// NewCompletedEvent builds the adapter payload for a finished session.
func NewCompletedEvent(result *SessionResult, at time.Time) *adapter.SessionCompletedEvent {
	event := &adapter.SessionCompletedEvent{
		ContractVersion: types.Version,
		EventType:       adapter.EventTypeSessionCompleted,
		SessionID:       result.Meta.SessionID,
		Mode:            string(result.Meta.Mode),
		Outcome:         string(result.Outcome),
		OutputPath:      result.OutputPath,
		Frames:          result.Frames,
		DurationMs:      result.Duration.Milliseconds(),
		StopReason:      string(result.StopReason),
		Report:          result.Report.Messages(),
		ArchivedFiles:   result.ArchivedFiles,
		Timestamp:       at.UTC().Format(time.RFC3339),
	}
	if result.Export != nil {
		event.ExportKind = string(result.Export.Kind)
	}
	return event
}

func diagnostic(err error) string {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Diagnostic()
	}
	return err.Error()
}

func exportDetail(err error) string {
	var be *export.BackendError
	if errors.As(err, &be) {
		return be.Detail()
	}
	return err.Error()
}
