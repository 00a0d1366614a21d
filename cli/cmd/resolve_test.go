package cmd

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/config"
)

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues maps flag names to their string values. All listed flags are
// registered and marked as explicitly set (c.IsSet returns true).
// defaultFlags maps flag names to default values (not explicitly set).
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range defaultFlags {
		fs.String(name, val, "")
	}
	for name := range flagValues {
		if _, ok := defaultFlags[name]; !ok {
			fs.String(name, "", "")
		}
	}

	// Only set the flagValues (not defaults) so c.IsSet works
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func flagNames(flags []cli.Flag) []string {
	var names []string
	for _, f := range flags {
		names = append(names, f.Names()[0])
	}
	return names
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"bridge-path": "cli-val"}, nil)
	got := resolveString(c, "bridge-path", "config-val")
	if got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"bridge-path": "k4abt-bridge"})
	got := resolveString(c, "bridge-path", "config-val")
	if got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"depth-mode": "NFOV_UNBINNED"})
	got := resolveString(c, "depth-mode", "")
	if got != "NFOV_UNBINNED" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *config.Config) string { return c.Archive.Path })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestConfigVal_NonNil(t *testing.T) {
	cfg := &config.Config{Archive: config.ArchiveConfig{Path: "from-config"}}
	got := configVal(cfg, func(c *config.Config) string { return c.Archive.Path })
	if got != "from-config" {
		t.Errorf("expected from-config, got %q", got)
	}
}

func TestResolveInt_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "max-frames"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("max-frames", 0, "")
	_ = fs.Set("max-frames", "500")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt(c, "max-frames", 1000)
	if got != 500 {
		t.Errorf("expected CLI to win with 500, got %d", got)
	}
}

func TestResolveInt_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "max-frames"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("max-frames", 0, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt(c, "max-frames", 1000)
	if got != 1000 {
		t.Errorf("expected config fallback 1000, got %d", got)
	}
}

func TestResolveBool_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "archive-s3-path-style"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("archive-s3-path-style", false, "")
	_ = fs.Set("archive-s3-path-style", "true")
	c := cli.NewContext(app, fs, nil)

	got := resolveBool(c, "archive-s3-path-style", false)
	if !got {
		t.Error("expected CLI true to win")
	}
}

func TestResolveBoolPtr(t *testing.T) {
	no := false
	yes := true

	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "export-partial"}}

	unset := func() *cli.Context {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Bool("export-partial", false, "")
		return cli.NewContext(app, fs, nil)
	}

	if got := resolveBoolPtr(unset(), "export-partial", nil, true); !got {
		t.Error("nil config should use fallback true")
	}
	if got := resolveBoolPtr(unset(), "export-partial", &no, true); got {
		t.Error("explicit config false should win over fallback")
	}
	if got := resolveBoolPtr(unset(), "export-partial", &yes, false); !got {
		t.Error("explicit config true should win over fallback")
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("export-partial", false, "")
	_ = fs.Set("export-partial", "false")
	if got := resolveBoolPtr(cli.NewContext(app, fs, nil), "export-partial", &yes, true); got {
		t.Error("explicit CLI false should win over config")
	}
}

func TestResolveDuration_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "adapter-timeout"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("adapter-timeout", 0, "")
	_ = fs.Set("adapter-timeout", "30s")
	c := cli.NewContext(app, fs, nil)

	got := resolveDuration(c, "adapter-timeout", 10*time.Second)
	if got != 30*time.Second {
		t.Errorf("expected CLI 30s to win, got %v", got)
	}
}

func TestResolveDuration_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "adapter-timeout"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("adapter-timeout", 0, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveDuration(c, "adapter-timeout", 10*time.Second)
	if got != 10*time.Second {
		t.Errorf("expected config fallback 10s, got %v", got)
	}
}

// --- adapter precedence ---

func newAdapterTestContext(t *testing.T, flags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringFlag{Name: "adapter-channel"},
		&cli.DurationFlag{Name: "adapter-timeout", Value: 10 * time.Second},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
		&cli.StringSliceFlag{Name: "adapter-header"},
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("adapter-url", "", "")
	fs.String("adapter-channel", "", "")
	fs.Duration("adapter-timeout", 10*time.Second, "")
	fs.Int("adapter-retries", 3, "")

	for name, val := range flags {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	// String slice flags need the full app.Run path; header tests use
	// config headers or TestParseAdapterConfig_MalformedHeader.
	return cli.NewContext(app, fs, nil)
}

func TestParseAdapterConfig_WebhookValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://hooks.example.com/skelcap",
	})

	ac, err := parseAdapterConfigWithPrecedence(c, nil, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.adapterType != "webhook" {
		t.Errorf("adapterType = %q, want %q", ac.adapterType, "webhook")
	}
	if ac.url != "https://hooks.example.com/skelcap" {
		t.Errorf("url = %q", ac.url)
	}
	if ac.retries != 3 || ac.timeout != 10*time.Second {
		t.Errorf("retries = %d, timeout = %v; want flag defaults", ac.retries, ac.timeout)
	}
}

func TestParseAdapterConfig_MissingURL(t *testing.T) {
	for _, typ := range []string{"webhook", "redis"} {
		c := newAdapterTestContext(t, nil)
		_, err := parseAdapterConfigWithPrecedence(c, nil, typ)
		if err == nil {
			t.Fatalf("%s: expected error for missing URL", typ)
		}
		if !strings.Contains(err.Error(), "--adapter-url is required when --adapter="+typ) {
			t.Errorf("%s: error should mention --adapter-url, got: %v", typ, err)
		}
	}
}

func TestParseAdapterConfig_RedisValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url":     "redis://localhost:6379",
		"adapter-channel": "mocap",
	})

	ac, err := parseAdapterConfigWithPrecedence(c, nil, "redis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.channel != "mocap" {
		t.Errorf("channel = %q, want %q", ac.channel, "mocap")
	}
}

func TestParseAdapterConfig_UnknownType(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://example.com",
	})

	_, err := parseAdapterConfigWithPrecedence(c, nil, "kafka")
	if err == nil {
		t.Fatal("expected error for unknown adapter type")
	}
	if !strings.Contains(err.Error(), "unknown adapter type") || !strings.Contains(err.Error(), "kafka") {
		t.Errorf("error should name the unknown type, got: %v", err)
	}
}

func TestParseAdapterConfig_ConfigValues(t *testing.T) {
	c := newAdapterTestContext(t, nil)
	retries := 0
	cfg := &config.Config{
		Adapter: config.AdapterConfig{
			URL:     "redis://cache:6379/2",
			Channel: "from-config",
			Timeout: config.Duration{Duration: 2 * time.Second},
			Retries: &retries,
			Headers: map[string]string{"X-Api-Key": "secret-123"},
		},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "redis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "redis://cache:6379/2" || ac.channel != "from-config" {
		t.Errorf("url/channel should come from config, got %q %q", ac.url, ac.channel)
	}
	if ac.timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", ac.timeout)
	}
	if ac.retries != 0 {
		t.Errorf("explicit retries: 0 in config should win, got %d", ac.retries)
	}
	if ac.headers["X-Api-Key"] != "secret-123" {
		t.Errorf("config headers not merged, got %v", ac.headers)
	}
}

func TestParseAdapterConfig_CLIOverridesConfigURL(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url":     "https://cli-url.example.com",
		"adapter-retries": "7",
	})
	retries := 1
	cfg := &config.Config{
		Adapter: config.AdapterConfig{
			URL:     "https://config-url.example.com",
			Retries: &retries,
		},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://cli-url.example.com" || ac.retries != 7 {
		t.Errorf("CLI should override config, got url=%q retries=%d", ac.url, ac.retries)
	}
}

func TestParseAdapterConfig_MalformedHeader(t *testing.T) {
	app := cli.NewApp()
	app.Flags = adapterFlags()

	var parseErr error
	app.Action = func(c *cli.Context) error {
		_, parseErr = parseAdapterConfigWithPrecedence(c, nil, "webhook")
		return nil
	}

	_ = app.Run([]string{"test",
		"--adapter-url", "https://example.com",
		"--adapter-header", "no-equals-sign",
	})

	if parseErr == nil {
		t.Fatal("expected error for malformed header")
	}
	if !strings.Contains(parseErr.Error(), "invalid --adapter-header") || !strings.Contains(parseErr.Error(), "key=value") {
		t.Errorf("error should suggest key=value format, got: %v", parseErr)
	}
}

func TestParseAdapterConfig_CLIHeaderOverridesConfig(t *testing.T) {
	app := cli.NewApp()
	app.Flags = adapterFlags()
	cfg := &config.Config{Adapter: config.AdapterConfig{
		Headers: map[string]string{"X-Source": "config", "X-Keep": "yes"},
	}}

	var ac *adapterChoice
	var parseErr error
	app.Action = func(c *cli.Context) error {
		ac, parseErr = parseAdapterConfigWithPrecedence(c, cfg, "webhook")
		return nil
	}
	if err := app.Run([]string{"test",
		"--adapter-url", "https://example.com",
		"--adapter-header", "X-Source=cli",
	}); err != nil {
		t.Fatal(err)
	}
	if parseErr != nil {
		t.Fatal(parseErr)
	}
	if ac.headers["X-Source"] != "cli" || ac.headers["X-Keep"] != "yes" {
		t.Errorf("headers = %v", ac.headers)
	}
}

// --- archive and control precedence ---

func runWithFlags(t *testing.T, flags []cli.Flag, args []string, fn func(c *cli.Context)) {
	t.Helper()
	app := cli.NewApp()
	app.Flags = flags
	app.Action = func(c *cli.Context) error {
		fn(c)
		return nil
	}
	if err := app.Run(append([]string{"test"}, args...)); err != nil {
		t.Fatal(err)
	}
}

func TestParseArchiveConfig(t *testing.T) {
	cfg := &config.Config{Archive: config.ArchiveConfig{
		Backend: "s3",
		Path:    "bucket/prefix",
		Region:  "eu-west-1",
	}}

	runWithFlags(t, archiveFlags(), []string{"--archive-path", "other/prefix"}, func(c *cli.Context) {
		got := parseArchiveConfig(c, cfg)
		want := archiveChoice{
			dataset: "skelcap",
			backend: "s3",
			path:    "other/prefix",
			region:  "eu-west-1",
		}
		if got != want {
			t.Errorf("parseArchiveConfig = %+v, want %+v", got, want)
		}
	})
}

func TestArchiveChoice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		choice  archiveChoice
		wantErr string
	}{
		{"disabled", archiveChoice{}, ""},
		{"fs", archiveChoice{backend: "fs", path: "/data"}, ""},
		{"s3", archiveChoice{backend: "s3", path: "bucket"}, ""},
		{"path without backend", archiveChoice{path: "/data"}, "requires --archive-backend"},
		{"fs without path", archiveChoice{backend: "fs"}, "--archive-path is required"},
		{"unknown backend", archiveChoice{backend: "gcs", path: "x"}, "unsupported --archive-backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.choice.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseControlConfig(t *testing.T) {
	cfg := &config.Config{Control: config.ControlConfig{
		Transport:  "mqtt",
		MQTTBroker: "tcp://broker:1883",
	}}

	runWithFlags(t, controlFlags("none"), nil, func(c *cli.Context) {
		got, err := parseControlConfig(c, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if got.transport != "mqtt" || got.mqttBroker != "tcp://broker:1883" || got.topicPrefix != "skelcap" {
			t.Errorf("parseControlConfig = %+v", got)
		}
	})

	runWithFlags(t, controlFlags("none"), []string{"--control", "osc", "--osc-listen", ":9000"}, func(c *cli.Context) {
		got, err := parseControlConfig(c, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if got.transport != "osc" || got.oscListen != ":9000" || got.oscNotify != "127.0.0.1:7001" {
			t.Errorf("parseControlConfig = %+v", got)
		}
	})
}

func TestParseControlConfig_Errors(t *testing.T) {
	runWithFlags(t, controlFlags("none"), []string{"--control", "mqtt"}, func(c *cli.Context) {
		if _, err := parseControlConfig(c, nil); err == nil || !strings.Contains(err.Error(), "--mqtt-broker is required") {
			t.Errorf("error = %v", err)
		}
	})
	runWithFlags(t, controlFlags("none"), []string{"--control", "serial"}, func(c *cli.Context) {
		if _, err := parseControlConfig(c, nil); err == nil || !strings.Contains(err.Error(), "unknown --control") {
			t.Errorf("error = %v", err)
		}
	})
}
