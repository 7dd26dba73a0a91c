package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/rpgtask/internal/logging"
	"github.com/dshills/rpgtask/internal/signal"
)

// Config is the complete application configuration.
type Config struct {
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Dispatch DispatchConfig `toml:"dispatch" yaml:"dispatch"`
	Scripts  ScriptsConfig  `toml:"scripts" yaml:"scripts"`

	// Watch enables live reload of the configuration file.
	Watch bool `toml:"watch" yaml:"watch"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// DispatchConfig configures the signal registry.
type DispatchConfig struct {
	// Policy is fail-fast or isolate.
	Policy string `toml:"policy" yaml:"policy"`

	// Weak makes Connect hold handlers weakly unless told otherwise.
	Weak bool `toml:"weak" yaml:"weak"`
}

// ScriptsConfig configures Lua signal handlers.
type ScriptsConfig struct {
	// Dir is the directory scanned for *.lua files. Empty disables scripts.
	Dir string `toml:"dir" yaml:"dir"`

	// Timeout bounds a single script invocation.
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Dispatch: DispatchConfig{
			Policy: signal.PolicyIsolate.String(),
			Weak:   true,
		},
		Scripts: ScriptsConfig{
			Timeout: Duration{2 * time.Second},
		},
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level))
	}
	switch logging.Format(strings.ToLower(c.Logging.Format)) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format))
	}
	if _, err := signal.ParsePolicy(c.Dispatch.Policy); err != nil {
		errs = append(errs, fmt.Errorf("%w: dispatch.policy: %v", ErrInvalidConfig, err))
	}
	if c.Scripts.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("%w: scripts.timeout must be positive, got %s", ErrInvalidConfig, c.Scripts.Timeout))
	}

	return errors.Join(errs...)
}

// LoggerConfig returns the logging settings in the form the logging
// package expects.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Format = logging.Format(strings.ToLower(c.Logging.Format))
	return cfg
}

// Policy returns the parsed dispatch policy. Validate reports a bad value;
// here it falls back to fail-fast.
func (c *Config) Policy() signal.Policy {
	p, _ := signal.ParsePolicy(c.Dispatch.Policy)
	return p
}

// Duration is a time.Duration written as a string such as "1500ms" in
// configuration files.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}
