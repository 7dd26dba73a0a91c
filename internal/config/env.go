package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "RPGTASK_"

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// envSetter applies one environment value to the configuration.
type envSetter func(cfg *Config, value string) error

// envMapping maps environment variables to the settings they override.
var envMapping = map[string]envSetter{
	EnvPrefix + "LOG_LEVEL": func(cfg *Config, v string) error {
		cfg.Logging.Level = strings.ToLower(v)
		return nil
	},
	EnvPrefix + "LOG_FORMAT": func(cfg *Config, v string) error {
		cfg.Logging.Format = strings.ToLower(v)
		return nil
	},
	EnvPrefix + "DISPATCH_POLICY": func(cfg *Config, v string) error {
		cfg.Dispatch.Policy = v
		return nil
	},
	EnvPrefix + "DISPATCH_WEAK": func(cfg *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		cfg.Dispatch.Weak = b
		return nil
	},
	EnvPrefix + "SCRIPTS_DIR": func(cfg *Config, v string) error {
		cfg.Scripts.Dir = v
		return nil
	},
	EnvPrefix + "SCRIPTS_TIMEOUT": func(cfg *Config, v string) error {
		return cfg.Scripts.Timeout.UnmarshalText([]byte(v))
	},
	EnvPrefix + "WATCH": func(cfg *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		cfg.Watch = b
		return nil
	},
}

// EnvVars returns the recognized environment variables in sorted order.
func EnvVars() []string {
	names := make([]string, 0, len(envMapping))
	for name := range envMapping {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides cfg with the environment variables found by lookup.
// Empty values are treated as set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for _, name := range EnvVars() {
		val, ok := lookup(name)
		if !ok {
			continue
		}
		if err := envMapping[name](cfg, val); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// parseBool accepts the spellings strconv.ParseBool does plus yes/no and on/off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
