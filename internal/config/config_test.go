package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/rpgtask/internal/logging"
	"github.com/dshills/rpgtask/internal/signal"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
	if cfg.Policy() != signal.PolicyIsolate {
		t.Errorf("Policy() = %v, want isolate", cfg.Policy())
	}
	if !cfg.Dispatch.Weak {
		t.Error("weak registration should be the default")
	}
	if cfg.Scripts.Timeout.Duration != 2*time.Second {
		t.Errorf("Scripts.Timeout = %v, want 2s", cfg.Scripts.Timeout)
	}
	if cfg.Watch {
		t.Error("watch should be off by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"policy", func(c *Config) { c.Dispatch.Policy = "retry" }, "dispatch.policy"},
		{"timeout", func(c *Config) { c.Scripts.Timeout.Duration = 0 }, "scripts.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Dispatch.Policy = "retry"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, field := range []string{"logging.level", "dispatch.policy"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not name %s", err, field)
		}
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "JSON"

	lc := cfg.LoggerConfig()
	if lc.Level != logging.LevelDebug {
		t.Errorf("Level = %v, want debug", lc.Level)
	}
	if lc.Format != logging.FormatJSON {
		t.Errorf("Format = %v, want json", lc.Format)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 1500ms ")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 1500*time.Millisecond {
		t.Errorf("got %v, want 1.5s", d.Duration)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "1.5s" {
		t.Errorf("MarshalText() = %q, want 1.5s", text)
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected an error for a bad duration")
	}
}
