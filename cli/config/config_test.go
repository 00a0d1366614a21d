package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/skelcap/types"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `tracker:
  backend: bridge
  bridge_path: /opt/k4abt/bin/k4abt-bridge
  bridge_args: ["--gpu", "0"]
  depth_mode: WFOV_BINNED
  color_resolution: 1080P

capture:
  max_frames: 900
  max_duration: 45s
  extended: true
  export_partial: false

control:
  transport: mqtt
  mqtt_broker: broker.local:1883
  mqtt_topic_prefix: studio/a

export:
  overwrite: true
  floor: false
  gltf_scale: 0.001

archive:
  dataset: takes
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

adapter:
  type: webhook
  url: https://hooks.example.com/skelcap
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Tracker
	assertEqual(t, "tracker.backend", cfg.Tracker.Backend, "bridge")
	assertEqual(t, "tracker.bridge_path", cfg.Tracker.BridgePath, "/opt/k4abt/bin/k4abt-bridge")
	if len(cfg.Tracker.BridgeArgs) != 2 {
		t.Errorf("expected 2 bridge args, got %v", cfg.Tracker.BridgeArgs)
	}
	dc := cfg.Tracker.DeviceConfig()
	want := types.DeviceConfig{FPS: 30, DepthMode: "WFOV_BINNED", ColorResolution: "1080P", ColorFormat: "MJPG"}
	if dc != want {
		t.Errorf("DeviceConfig() = %+v, want %+v", dc, want)
	}

	// Capture
	if cfg.Capture.MaxFrames != 900 {
		t.Errorf("expected max_frames=900, got %d", cfg.Capture.MaxFrames)
	}
	if cfg.Capture.MaxDuration.Duration != 45*time.Second {
		t.Errorf("expected max_duration=45s, got %v", cfg.Capture.MaxDuration.Duration)
	}
	if !cfg.Capture.Extended {
		t.Error("expected capture.extended=true")
	}
	if cfg.Capture.ExportPartial == nil || *cfg.Capture.ExportPartial {
		t.Error("expected capture.export_partial=false")
	}

	// Control
	assertEqual(t, "control.transport", cfg.Control.Transport, "mqtt")
	assertEqual(t, "control.mqtt_broker", cfg.Control.MQTTBroker, "broker.local:1883")
	assertEqual(t, "control.mqtt_topic_prefix", cfg.Control.MQTTTopicPrefix, "studio/a")

	// Export
	if !cfg.Export.Overwrite {
		t.Error("expected export.overwrite=true")
	}
	if cfg.Export.Floor == nil || *cfg.Export.Floor {
		t.Error("expected export.floor=false")
	}
	if cfg.Export.GLTFScale != 0.001 {
		t.Errorf("expected gltf_scale=0.001, got %v", cfg.Export.GLTFScale)
	}

	// Archive
	assertEqual(t, "archive.dataset", cfg.Archive.Dataset, "takes")
	assertEqual(t, "archive.backend", cfg.Archive.Backend, "s3")
	assertEqual(t, "archive.path", cfg.Archive.Path, "my-bucket/prefix")
	assertEqual(t, "archive.region", cfg.Archive.Region, "us-east-1")
	assertEqual(t, "archive.endpoint", cfg.Archive.Endpoint, "https://example.com")
	if !cfg.Archive.S3PathStyle {
		t.Error("expected archive.s3_path_style=true")
	}

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/skelcap")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3")
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization header")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Control.Transport != "" {
		t.Errorf("expected empty transport, got %q", cfg.Control.Transport)
	}
	if cfg.Tracker.DeviceConfig() != types.DefaultDeviceConfig() {
		t.Error("empty tracker config should give the default device config")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/skelcap.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SKELCAP_TEST_BROKER", "10.0.0.5:1883")
	path := writeTemp(t, `control:
  transport: mqtt
  mqtt_broker: ${SKELCAP_TEST_BROKER}
  mqtt_topic_prefix: ${SKELCAP_TEST_PREFIX:-skelcap}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "control.mqtt_broker", cfg.Control.MQTTBroker, "10.0.0.5:1883")
	assertEqual(t, "control.mqtt_topic_prefix", cfg.Control.MQTTTopicPrefix, "skelcap")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeTemp(t, "recorder: kinect\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	path := writeTemp(t, "control:\n  transport: osc\n  osc_port: 7000\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown nested key")
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n\n  \n")
	if _, err := Load(path); err != nil {
		t.Fatalf("whitespace-only config should load, got %v", err)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# skelcap defaults\n# nothing set yet\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("comments-only config should load, got %v", err)
	}
}

func TestLoad_InvalidEnumRejected(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		contain string
	}{
		{"tracker backend", "tracker:\n  backend: kinect\n", "tracker.backend"},
		{"control transport", "control:\n  transport: serial\n", "control.transport"},
		{"archive backend", "archive:\n  backend: gcs\n", "archive.backend"},
		{"adapter type", "adapter:\n  type: kafka\n", "adapter.type"},
		{"negative frames", "capture:\n  max_frames: -1\n", "capture.max_frames"},
		{"negative retries", "adapter:\n  retries: -2\n", "adapter.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.contain) {
				t.Errorf("error %q should mention %q", err, tt.contain)
			}
		})
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	path := writeTemp(t, "adapter:\n  type: webhook\n  retries: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("explicit retries: 0 should be non-nil")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	path := writeTemp(t, "adapter:\n  type: webhook\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("omitted retries should be nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	path := writeTemp(t, "capture:\n  max_duration: forever\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	path := writeTemp(t, "capture:\n  max_duration: \"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Capture.MaxDuration.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Capture.MaxDuration.Duration)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	path := writeTemp(t, `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: studio:takes
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "studio:takes")
}

func TestLoadOptional(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOptional("")
	if err != nil || cfg != nil {
		t.Fatalf("no default file: cfg=%v err=%v", cfg, err)
	}

	if err := os.WriteFile(DefaultPath, []byte("control:\n  transport: osc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	assertEqual(t, "control.transport", cfg.Control.Transport, "osc")

	if _, err := LoadOptional("missing.yaml"); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skelcap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
