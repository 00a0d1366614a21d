// Package metrics provides per-session counters for capture, export and
// archive.
//
// The Collector accumulates counters during a single session. It is a leaf
// package with no internal dependencies; export kinds are plain strings.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64 `json:"sessions_started"`
	SessionsCompleted int64 `json:"sessions_completed"`
	SessionsFailed    int64 `json:"sessions_failed"`

	// Acquisition
	Polls              int64 `json:"polls"`
	SkeletonsAccepted  int64 `json:"skeletons_accepted"`
	FramesWithoutBody  int64 `json:"frames_without_body"`
	FramesWithoutDepth int64 `json:"frames_without_depth"`
	StopSignals        int64 `json:"stop_signals"`
	BackendErrors      int64 `json:"backend_errors"`

	// Export, keyed by kind ("fbx", "gltf")
	ExportSuccess map[string]int64 `json:"export_success"`
	ExportFailure map[string]int64 `json:"export_failure"`

	// Archive
	ArchiveWriteSuccess int64 `json:"archive_write_success"`
	ArchiveWriteFailure int64 `json:"archive_write_failure"`

	// Dimensions (informational, set at construction)
	Mode           string `json:"mode"`
	Backend        string `json:"backend"`
	StorageBackend string `json:"storage_backend,omitempty"`
	SessionID      string `json:"session_id"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64

	polls              int64
	skeletonsAccepted  int64
	framesWithoutBody  int64
	framesWithoutDepth int64
	stopSignals        int64
	backendErrors      int64

	exportSuccess map[string]int64
	exportFailure map[string]int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	mode           string
	backend        string
	storageBackend string
	sessionID      string
}

// NewCollector creates a Collector with dimension labels. storageBackend
// is empty when archiving is disabled.
func NewCollector(mode, backend, storageBackend, sessionID string) *Collector {
	return &Collector{
		exportSuccess:  make(map[string]int64),
		exportFailure:  make(map[string]int64),
		mode:           mode,
		backend:        backend,
		storageBackend: storageBackend,
		sessionID:      sessionID,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsStarted)
}

// IncSessionCompleted records a successful session.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsCompleted)
}

// IncSessionFailed records a session ending with any error outcome.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsFailed)
}

// --- Acquisition ---

// IncPoll records one backend poll.
func (c *Collector) IncPoll() {
	if c == nil {
		return
	}
	c.inc(&c.polls)
}

// IncSkeletonAccepted records a snapshot appended to the buffer.
func (c *Collector) IncSkeletonAccepted() {
	if c == nil {
		return
	}
	c.inc(&c.skeletonsAccepted)
}

// IncFrameWithoutBody records a tracked capture with zero bodies.
func (c *Collector) IncFrameWithoutBody() {
	if c == nil {
		return
	}
	c.inc(&c.framesWithoutBody)
}

// IncFrameWithoutDepth records a capture skipped for lacking depth.
func (c *Collector) IncFrameWithoutDepth() {
	if c == nil {
		return
	}
	c.inc(&c.framesWithoutDepth)
}

// IncStopSignal records an observed stop signal.
func (c *Collector) IncStopSignal() {
	if c == nil {
		return
	}
	c.inc(&c.stopSignals)
}

// IncBackendError records a backend setup, poll or tracker failure.
func (c *Collector) IncBackendError() {
	if c == nil {
		return
	}
	c.inc(&c.backendErrors)
}

// --- Export ---

// IncExportSuccess records a successful export for kind.
func (c *Collector) IncExportSuccess(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.exportSuccess[kind]++
	c.mu.Unlock()
}

// IncExportFailure records a failed export for kind.
func (c *Collector) IncExportFailure(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.exportFailure[kind]++
	c.mu.Unlock()
}

// --- Archive ---

// IncArchiveWriteSuccess records an archived file.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteSuccess)
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,

		Polls:              c.polls,
		SkeletonsAccepted:  c.skeletonsAccepted,
		FramesWithoutBody:  c.framesWithoutBody,
		FramesWithoutDepth: c.framesWithoutDepth,
		StopSignals:        c.stopSignals,
		BackendErrors:      c.backendErrors,

		ExportSuccess: copyCounts(c.exportSuccess),
		ExportFailure: copyCounts(c.exportFailure),

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		Mode:           c.mode,
		Backend:        c.backend,
		StorageBackend: c.storageBackend,
		SessionID:      c.sessionID,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
