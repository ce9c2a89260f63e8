package config

import "time"

// Config is the full taskwatch configuration, loaded from a YAML or JSON
// file. Unknown keys are rejected so typos fail at startup instead of being
// silently ignored.
//
// All duration fields are Go duration strings (e.g. "20s", "1m"); Validate
// resolves them into the typed fields marked `json:"-"`.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Registry RegistryConfig `json:"registry"`
	Monitor  MonitorConfig  `json:"monitor"`
	Storage  StorageConfig  `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via
	// TASKWATCH_TELEGRAM_TOKEN instead; the file is often world-readable.
	Token      string `json:"token,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type RegistryConfig struct {
	// DSN may be supplied via TASKWATCH_REGISTRY_DSN.
	DSN string `json:"dsn,omitempty"`

	// MarkerID is the registry row representing the monitor itself; its
	// last-run timestamp is written back after every pass.
	MarkerID string `json:"marker_id"`
}

type MonitorConfig struct {
	// MissThreshold is how many consecutive missed cycles warrant an alert.
	MissThreshold int `json:"miss_threshold,omitempty"`

	// WindowGrace shifts each job's window open to absorb scheduler jitter.
	WindowGrace string `json:"window_grace,omitempty"`

	// Exclude lists job ids exempt from alerting.
	Exclude []string `json:"exclude,omitempty"`

	// FloodSends / FloodPause pace outbound notifications: pause FloodPause
	// after every FloodSends successful sends.
	FloodSends int    `json:"flood_sends,omitempty"`
	FloodPause string `json:"flood_pause,omitempty"`

	// Schedule is an optional cron expression. When set, taskwatch stays
	// resident and runs passes itself; when empty it runs one pass and exits
	// (an external scheduler drives the cadence).
	Schedule string `json:"schedule,omitempty"`

	WindowGraceDur time.Duration `json:"-"`
	FloodPauseDur  time.Duration `json:"-"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`

	BusyTimeoutDur time.Duration `json:"-"`
}
