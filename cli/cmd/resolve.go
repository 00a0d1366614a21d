package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/config"
)

// loadConfig loads --config, or ./skelcap.yaml when the flag is absent and
// the file exists. Returns nil when no config applies.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// configVal reads a string from cfg, or "" when there is no config.
func configVal(cfg *config.Config, get func(*config.Config) string) string {
	if cfg == nil {
		return ""
	}
	return get(cfg)
}

// resolveString returns the CLI value when the flag was set explicitly,
// else the config value when non-empty, else the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if cfgVal != "" {
		return cfgVal
	}
	return c.String(name)
}

// resolveInt follows resolveString precedence; zero config values defer
// to the flag default.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Int(name)
}

// resolveBool follows resolveString precedence; a false config value
// defers to the flag default.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	if cfgVal {
		return true
	}
	return c.Bool(name)
}

// resolveBoolPtr is resolveBool for optional config values, where an
// explicit false in the config wins over fallback.
func resolveBoolPtr(c *cli.Context, name string, cfgVal *bool, fallback bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	if cfgVal != nil {
		return *cfgVal
	}
	return fallback
}

// resolveFloat follows resolveString precedence.
func resolveFloat(c *cli.Context, name string, cfgVal float64) float64 {
	if c.IsSet(name) {
		return c.Float64(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Float64(name)
}

// resolveDuration follows resolveString precedence.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Duration(name)
}

// adapterChoice holds the resolved adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter flags over config
// values. Config headers are merged under CLI headers.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	var cfgAdapter config.AdapterConfig
	if cfg != nil {
		cfgAdapter = cfg.Adapter
	}

	ac := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", cfgAdapter.URL),
		channel:     resolveString(c, "adapter-channel", cfgAdapter.Channel),
		timeout:     resolveDuration(c, "adapter-timeout", cfgAdapter.Timeout.Duration),
		retries:     c.Int("adapter-retries"),
		headers:     make(map[string]string),
	}
	if !c.IsSet("adapter-retries") && cfgAdapter.Retries != nil {
		ac.retries = *cfgAdapter.Retries
	}

	for k, v := range cfgAdapter.Headers {
		ac.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (expected key=value)", h)
		}
		ac.headers[k] = v
	}

	switch adapterType {
	case "webhook", "redis":
		if ac.url == "" {
			return nil, fmt.Errorf("--adapter-url is required when --adapter=%s", adapterType)
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}
	if ac.retries < 0 {
		return nil, errors.New("--adapter-retries must be >= 0")
	}
	return ac, nil
}

// archiveChoice holds the resolved archive configuration.
type archiveChoice struct {
	dataset     string
	backend     string
	path        string
	region      string
	endpoint    string
	s3PathStyle bool
}

func parseArchiveConfig(c *cli.Context, cfg *config.Config) archiveChoice {
	return archiveChoice{
		dataset:     resolveString(c, "archive-dataset", configVal(cfg, func(c *config.Config) string { return c.Archive.Dataset })),
		backend:     resolveString(c, "archive-backend", configVal(cfg, func(c *config.Config) string { return c.Archive.Backend })),
		path:        resolveString(c, "archive-path", configVal(cfg, func(c *config.Config) string { return c.Archive.Path })),
		region:      resolveString(c, "archive-region", configVal(cfg, func(c *config.Config) string { return c.Archive.Region })),
		endpoint:    resolveString(c, "archive-endpoint", configVal(cfg, func(c *config.Config) string { return c.Archive.Endpoint })),
		s3PathStyle: resolveBool(c, "archive-s3-path-style", cfg != nil && cfg.Archive.S3PathStyle),
	}
}

// validate checks the archive choice. An empty backend disables archiving.
func (a archiveChoice) validate() error {
	switch a.backend {
	case "":
		if a.path != "" {
			return errors.New("--archive-path requires --archive-backend (fs or s3)")
		}
		return nil
	case "fs", "s3":
		if a.path == "" {
			return fmt.Errorf("--archive-path is required when --archive-backend=%s", a.backend)
		}
		return nil
	default:
		return fmt.Errorf("unsupported --archive-backend %q (must be fs or s3)", a.backend)
	}
}

// controlChoice holds the resolved control transport configuration.
type controlChoice struct {
	transport   string
	oscListen   string
	oscNotify   string
	mqttBroker  string
	topicPrefix string
	clientID    string
}

func parseControlConfig(c *cli.Context, cfg *config.Config) (controlChoice, error) {
	cc := controlChoice{
		transport:   resolveString(c, "control", configVal(cfg, func(c *config.Config) string { return c.Control.Transport })),
		oscListen:   resolveString(c, "osc-listen", configVal(cfg, func(c *config.Config) string { return c.Control.OSCListen })),
		oscNotify:   resolveString(c, "osc-notify", configVal(cfg, func(c *config.Config) string { return c.Control.OSCNotify })),
		mqttBroker:  resolveString(c, "mqtt-broker", configVal(cfg, func(c *config.Config) string { return c.Control.MQTTBroker })),
		topicPrefix: resolveString(c, "mqtt-topic-prefix", configVal(cfg, func(c *config.Config) string { return c.Control.MQTTTopicPrefix })),
		clientID:    resolveString(c, "mqtt-client-id", configVal(cfg, func(c *config.Config) string { return c.Control.MQTTClientID })),
	}
	switch cc.transport {
	case "none", "osc":
	case "mqtt":
		if cc.mqttBroker == "" {
			return cc, errors.New("--mqtt-broker is required when --control=mqtt")
		}
	default:
		return cc, fmt.Errorf("unknown --control %q (must be osc, mqtt or none)", cc.transport)
	}
	return cc, nil
}
