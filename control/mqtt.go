package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pithecene-io/skelcap/log"
)

// DefaultTopicPrefix roots the MQTT topics when none is configured.
const DefaultTopicPrefix = "skelcap"

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	// Broker is host:port or a full URL (tcp://, ssl://, ws://).
	Broker   string
	ClientID string
	// TopicPrefix roots the control and status topics. Default
	// DefaultTopicPrefix.
	TopicPrefix    string
	ConnectTimeout time.Duration
	Logger         *log.Logger
}

// mqttCommand is the JSON form of a control message. A bare
// "end_recording" payload is also accepted.
type mqttCommand struct {
	Command string `json:"command"`
	Output  string `json:"output,omitempty"`
}

// mqttStatus is published to <prefix>/status.
type mqttStatus struct {
	Status  string `json:"status"`
	Success *bool  `json:"success,omitempty"`
	Report  string `json:"report,omitempty"`
}

// MQTT receives commands on <prefix>/control and publishes status to
// <prefix>/status. QoS 0, not retained.
type MQTT struct {
	commandTarget
	cfg    MQTTConfig
	logger *log.Logger
	client mqtt.Client
}

var _ Transport = (*MQTT)(nil)

// NewMQTT creates an MQTT transport. Nothing connects until Start.
func NewMQTT(cfg MQTTConfig) *MQTT {
	t := newMQTTWithClient(nil, cfg)
	cfg, logger := t.cfg, t.logger

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", map[string]any{
			"broker": cfg.Broker,
			"error":  err.Error(),
		})
	}
	// Resubscribe after every reconnect.
	opts.OnConnect = func(c mqtt.Client) {
		if err := t.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", map[string]any{"error": err.Error()})
		}
	}
	t.client = mqtt.NewClient(opts)
	return t
}

// newMQTTWithClient builds a transport around an existing client.
func newMQTTWithClient(client mqtt.Client, cfg MQTTConfig) *MQTT {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "skelcap"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &MQTT{cfg: cfg, logger: logger, client: client}
}

// ControlTopic is the topic commands are read from.
func (t *MQTT) ControlTopic() string { return t.cfg.TopicPrefix + "/control" }

// StatusTopic is the topic status messages are published to.
func (t *MQTT) StatusTopic() string { return t.cfg.TopicPrefix + "/status" }

// Start connects to the broker. Subscription happens in the connect
// handler so it survives reconnects.
func (t *MQTT) Start(ctx context.Context) error {
	t.logger.Info("connecting to mqtt broker", map[string]any{"broker": t.cfg.Broker})
	token := t.client.Connect()
	if err := waitToken(ctx, token, t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (t *MQTT) subscribe(c mqtt.Client) error {
	token := c.Subscribe(t.ControlTopic(), 0, t.handleMessage)
	if !token.WaitTimeout(t.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt subscribe timeout")
	}
	return token.Error()
}

func (t *MQTT) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	cmd, err := parseCommand(msg.Payload())
	if err != nil {
		t.logger.Warn("invalid mqtt command", map[string]any{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	switch cmd.Command {
	case CommandEndRecording:
		if !t.endRecording("mqtt") {
			t.logger.Debug("end recording received with no active session", nil)
		}
	case CommandStartRecording:
		if cmd.Output == "" {
			t.logger.Warn("start recording without output path", nil)
			return
		}
		if !t.startRecording(cmd.Output) {
			t.logger.Debug("start recording ignored", map[string]any{"output": cmd.Output})
		}
	default:
		t.logger.Debug("ignoring mqtt command", map[string]any{"command": cmd.Command})
	}
}

func parseCommand(payload []byte) (mqttCommand, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return mqttCommand{}, fmt.Errorf("empty payload")
	}
	if !strings.HasPrefix(text, "{") {
		return mqttCommand{Command: text}, nil
	}
	var cmd mqttCommand
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		return mqttCommand{}, err
	}
	return cmd, nil
}

// RecordingStarted publishes {"status":"recording_started"}.
func (t *MQTT) RecordingStarted(ctx context.Context) {
	t.publish(ctx, mqttStatus{Status: "recording_started"})
}

// ProgramComplete publishes the session result.
func (t *MQTT) ProgramComplete(ctx context.Context, success bool, report string) {
	t.publish(ctx, mqttStatus{Status: "program_complete", Success: &success, Report: report})
}

func (t *MQTT) publish(ctx context.Context, status mqttStatus) {
	body, err := json.Marshal(status)
	if err != nil {
		t.logger.Error("failed to encode mqtt status", map[string]any{"error": err.Error()})
		return
	}
	token := t.client.Publish(t.StatusTopic(), 0, false, body)
	if err := waitToken(ctx, token, t.cfg.ConnectTimeout); err != nil {
		t.logger.Warn("failed to publish mqtt status", map[string]any{
			"status": status.Status,
			"error":  err.Error(),
		})
	}
}

// Close disconnects, allowing in-flight work 250ms to finish.
func (t *MQTT) Close() error {
	if t.client.IsConnected() {
		t.client.Disconnect(250)
	}
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
