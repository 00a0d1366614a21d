package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/pithecene-io/skelcap/log"
)

// OSC addresses understood and emitted by the OSC transport.
const (
	AddrEndRecording     = "/End Recording/"
	AddrStartRecording   = "/Start Recording/"
	AddrRecordingStarted = "/Recording Started/"
	AddrProgramComplete  = "/Program Complete/"
)

// Default OSC endpoints.
const (
	DefaultOSCListenAddr = ":7000"
	DefaultOSCNotifyAddr = "127.0.0.1:7001"
)

const oscReadTimeout = 100 * time.Millisecond

// errNotOSC reports a datagram that is neither a message nor a bundle.
var errNotOSC = errors.New("not an osc message or bundle")

// OSCConfig configures the OSC transport.
type OSCConfig struct {
	// ListenAddr is the UDP address commands arrive on.
	ListenAddr string
	// NotifyAddr is the host:port status messages are sent to. Empty
	// disables notifications.
	NotifyAddr string
	Logger     *log.Logger
}

// OSC receives commands and sends status messages as OSC over UDP.
type OSC struct {
	commandTarget
	cfg    OSCConfig
	logger *log.Logger
	conn   net.PacketConn
	client *osc.Client
}

var _ Transport = (*OSC)(nil)

// NewOSC creates an OSC transport. Nothing is bound until Start.
func NewOSC(cfg OSCConfig) (*OSC, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultOSCListenAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	t := &OSC{cfg: cfg, logger: logger}
	if cfg.NotifyAddr != "" {
		host, portStr, err := net.SplitHostPort(cfg.NotifyAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid osc notify address %q: %w", cfg.NotifyAddr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid osc notify port %q: %w", portStr, err)
		}
		t.client = osc.NewClient(host, port)
	}
	return t, nil
}

// Start binds the listen address and serves commands until ctx is done or
// Close is called. The receive goroutine is not joined.
func (t *OSC) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", t.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	t.conn = conn
	t.logger.Info("osc listener started", map[string]any{"addr": conn.LocalAddr().String()})
	go t.serve(ctx, conn)
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (t *OSC) Addr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Close stops the listener.
func (t *OSC) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *OSC) serve(ctx context.Context, conn net.PacketConn) {
	buffer := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		// Short deadline so cancellation is observed.
		_ = conn.SetReadDeadline(time.Now().Add(oscReadTimeout))
		n, from, err := conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			t.logger.Warn("osc read error", map[string]any{"error": err.Error()})
			continue
		}
		if err := t.handlePacket(buffer[:n]); err != nil {
			t.logger.Warn("dropping osc packet", map[string]any{
				"from":  from.String(),
				"error": err.Error(),
			})
		}
	}
}

func (t *OSC) handlePacket(data []byte) error {
	packet, err := osc.ParsePacket(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse osc packet: %w", err)
	}
	if packet == nil {
		return errNotOSC
	}
	t.dispatch(packet)
	return nil
}

func (t *OSC) dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		t.handleMessage(p)
	case *osc.Bundle:
		for _, m := range p.Messages {
			t.handleMessage(m)
		}
		for _, b := range p.Bundles {
			t.dispatch(b)
		}
	}
}

func (t *OSC) handleMessage(msg *osc.Message) {
	switch msg.Address {
	case AddrEndRecording:
		if !t.endRecording("osc") {
			t.logger.Debug("end recording received with no active session", nil)
		}
	case AddrStartRecording:
		path := ""
		if len(msg.Arguments) > 0 {
			path, _ = msg.Arguments[0].(string)
		}
		if path == "" {
			t.logger.Warn("start recording without output path", nil)
			return
		}
		if !t.startRecording(path) {
			t.logger.Debug("start recording ignored", map[string]any{"output": path})
		}
	default:
		t.logger.Debug("ignoring osc message", map[string]any{"address": msg.Address})
	}
}

// RecordingStarted sends /Recording Started/.
func (t *OSC) RecordingStarted(context.Context) {
	t.send(osc.NewMessage(AddrRecordingStarted))
}

// ProgramComplete sends /Program Complete/ with an int32 success flag
// (1 or 0) and the report text.
func (t *OSC) ProgramComplete(_ context.Context, success bool, report string) {
	flag := int32(0)
	if success {
		flag = 1
	}
	msg := osc.NewMessage(AddrProgramComplete)
	msg.Append(flag)
	msg.Append(report)
	t.send(msg)
}

func (t *OSC) send(msg *osc.Message) {
	if t.client == nil {
		return
	}
	if err := t.client.Send(msg); err != nil {
		t.logger.Warn("failed to send osc status", map[string]any{
			"address": msg.Address,
			"error":   err.Error(),
		})
	}
}
