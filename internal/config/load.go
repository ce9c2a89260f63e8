package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ErrInvalid marks configuration problems: missing credentials, unparsable
// durations, out-of-range knobs. These fail the process before any registry
// access is attempted.
var ErrInvalid = errors.New("invalid configuration")

const (
	// Environment overrides for secrets. When set, they win over the file.
	EnvTelegramToken = "TASKWATCH_TELEGRAM_TOKEN"
	EnvRegistryDSN   = "TASKWATCH_REGISTRY_DSN"
)

// Load reads, decodes, env-overrides, defaults and validates the config file.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes the file strictly without applying env overrides or
// validation. The watcher uses it to vet reload candidates.
func Parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%w: trailing data", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvTelegramToken)); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRegistryDSN)); v != "" {
		c.Registry.DSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 20
	}
	if c.Monitor.MissThreshold == 0 {
		c.Monitor.MissThreshold = 3
	}
	if c.Monitor.WindowGrace == "" {
		c.Monitor.WindowGrace = "20s"
	}
	if c.Monitor.FloodSends <= 0 {
		c.Monitor.FloodSends = 19
	}
	if c.Monitor.FloodPause == "" {
		c.Monitor.FloodPause = "60s"
	}
}

// Validate checks the config and resolves duration strings into their typed
// fields. All violations wrap ErrInvalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("%w: telegram.token is required (file or %s)", ErrInvalid, EnvTelegramToken)
	}
	if strings.TrimSpace(c.Registry.DSN) == "" {
		return fmt.Errorf("%w: registry.dsn is required (file or %s)", ErrInvalid, EnvRegistryDSN)
	}
	if strings.TrimSpace(c.Registry.MarkerID) == "" {
		return fmt.Errorf("%w: registry.marker_id is required", ErrInvalid)
	}
	if c.Monitor.MissThreshold < 1 {
		return fmt.Errorf("%w: monitor.miss_threshold must be >= 1", ErrInvalid)
	}

	var err error
	if c.Monitor.WindowGraceDur, err = parseDurationField("monitor.window_grace", c.Monitor.WindowGrace); err != nil {
		return err
	}
	if c.Monitor.FloodPauseDur, err = parseDurationField("monitor.flood_pause", c.Monitor.FloodPause); err != nil {
		return err
	}
	if c.Monitor.FloodPauseDur <= 0 {
		return fmt.Errorf("%w: monitor.flood_pause must be > 0", ErrInvalid)
	}
	if c.Storage.BusyTimeoutDur, err = parseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

func parseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: bad duration %q", ErrInvalid, path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: duration must be >= 0", ErrInvalid, path)
	}
	return d, nil
}
