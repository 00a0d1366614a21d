package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/skelcap/types"
)

// Config represents a skelcap.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Capture CaptureConfig `yaml:"capture"`
	Control ControlConfig `yaml:"control"`
	Export  ExportConfig  `yaml:"export"`
	Archive ArchiveConfig `yaml:"archive"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// TrackerConfig selects and configures the body-tracking backend.
type TrackerConfig struct {
	// Backend is "bridge" (default) or "stub".
	Backend         string   `yaml:"backend"`
	BridgePath      string   `yaml:"bridge_path"`
	BridgeArgs      []string `yaml:"bridge_args,omitempty"`
	BridgeEnv       []string `yaml:"bridge_env,omitempty"`
	FPS             int      `yaml:"fps"`
	DepthMode       string   `yaml:"depth_mode"`
	ColorResolution string   `yaml:"color_resolution"`
	ColorFormat     string   `yaml:"color_format"`
}

// CaptureConfig holds acquisition budget defaults.
type CaptureConfig struct {
	MaxFrames   int      `yaml:"max_frames"`
	MaxDuration Duration `yaml:"max_duration"`
	// Extended raises the live frame ceiling to one hour.
	Extended      bool  `yaml:"extended"`
	ExportPartial *bool `yaml:"export_partial,omitempty"`
}

// ControlConfig holds stop-signal transport defaults.
type ControlConfig struct {
	// Transport is "osc", "mqtt" or "none".
	Transport       string `yaml:"transport"`
	OSCListen       string `yaml:"osc_listen"`
	OSCNotify       string `yaml:"osc_notify"`
	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
}

// ExportConfig holds export back end defaults.
type ExportConfig struct {
	Overwrite       bool    `yaml:"overwrite"`
	Floor           *bool   `yaml:"floor,omitempty"`
	FloorHalfExtent float64 `yaml:"floor_half_extent"`
	GLTFScale       float64 `yaml:"gltf_scale"`
}

// ArchiveConfig holds archive storage defaults.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// DeviceConfig returns the camera configuration with unset fields taken
// from types.DefaultDeviceConfig.
func (c TrackerConfig) DeviceConfig() types.DeviceConfig {
	dc := types.DefaultDeviceConfig()
	if c.FPS > 0 {
		dc.FPS = c.FPS
	}
	if c.DepthMode != "" {
		dc.DepthMode = c.DepthMode
	}
	if c.ColorResolution != "" {
		dc.ColorResolution = c.ColorResolution
	}
	if c.ColorFormat != "" {
		dc.ColorFormat = c.ColorFormat
	}
	return dc
}

// Validate checks enumerated fields. Empty values are accepted and left to
// flag defaults.
func (c *Config) Validate() error {
	if err := oneOf("tracker.backend", c.Tracker.Backend, "bridge", "stub"); err != nil {
		return err
	}
	if err := oneOf("control.transport", c.Control.Transport, "osc", "mqtt", "none"); err != nil {
		return err
	}
	if err := oneOf("archive.backend", c.Archive.Backend, "fs", "s3"); err != nil {
		return err
	}
	if err := oneOf("adapter.type", c.Adapter.Type, "webhook", "redis"); err != nil {
		return err
	}
	if c.Capture.MaxFrames < 0 {
		return fmt.Errorf("capture.max_frames must be >= 0, got %d", c.Capture.MaxFrames)
	}
	if c.Capture.MaxDuration.Duration < 0 {
		return fmt.Errorf("capture.max_duration must be >= 0, got %s", c.Capture.MaxDuration.Duration)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (must be one of %v)", field, value, allowed)
}
