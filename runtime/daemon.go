package runtime

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/pithecene-io/skelcap/control"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/types"
)

// DaemonConfig configures listen mode.
type DaemonConfig struct {
	// Transport delivers start and end commands and carries status back.
	Transport control.Transport
	// Template is copied for every session. OutputPath, SessionID, Stop
	// and Notifier are set per session; Source.Mode is forced to live.
	Template SessionConfig
	Logger   *log.Logger
	// OnResult is called after each session, from the daemon goroutine.
	OnResult func(*SessionResult)
}

// Daemon runs live sessions on demand, one at a time. Start commands
// received while a session is running are dropped.
type Daemon struct {
	config   DaemonConfig
	logger   *log.Logger
	requests chan string
	busy     atomic.Bool
	sessions atomic.Int64
}

// NewDaemon creates a listen-mode daemon.
func NewDaemon(config DaemonConfig) *Daemon {
	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Daemon{
		config:   config,
		logger:   logger,
		requests: make(chan string, 1),
	}
}

// Sessions returns the number of sessions run so far.
func (d *Daemon) Sessions() int {
	return int(d.sessions.Load())
}

// Run starts the transport and serves start commands until ctx ends. A
// session in progress when ctx ends drains and exports before Run
// returns.
func (d *Daemon) Run(ctx context.Context) error {
	if d.config.Transport == nil {
		return errors.New("listen mode requires a control transport")
	}
	d.config.Transport.OnStart(d.request)
	if err := d.config.Transport.Start(ctx); err != nil {
		return err
	}
	d.logger.Info("waiting for start command", nil)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("listen mode stopped", map[string]any{
				"sessions": d.Sessions(),
			})
			return nil
		case path := <-d.requests:
			d.runSession(ctx, path)
		}
	}
}

// request is the transport's start handler. It may be called from any
// goroutine.
func (d *Daemon) request(outputPath string) {
	if outputPath == "" {
		d.logger.Warn("start command without output path ignored", nil)
		return
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.logger.Warn("session already running, start command ignored", map[string]any{
			"output": outputPath,
		})
		return
	}
	select {
	case d.requests <- outputPath:
	default:
		d.busy.Store(false)
	}
}

func (d *Daemon) runSession(ctx context.Context, outputPath string) {
	defer d.busy.Store(false)

	stop := control.NewStopSignal()
	d.config.Transport.SetStop(stop)
	defer d.config.Transport.SetStop(nil)

	cfg := d.config.Template
	cfg.SessionID = ""
	cfg.OutputPath = outputPath
	cfg.Stop = stop
	cfg.Source.Mode = types.SessionModeLive
	if cfg.Notifier == nil {
		cfg.Notifier = d.config.Transport
	} else {
		cfg.Notifier = control.MultiNotifier{d.config.Transport, cfg.Notifier}
	}

	session := NewSession(cfg)
	d.logger.Info("session requested", map[string]any{
		"session_id": session.ID(),
		"output":     outputPath,
	})
	result := session.Execute(ctx)
	d.sessions.Add(1)
	if d.config.OnResult != nil {
		d.config.OnResult(result)
	}
}
