// Package storage provides an optional local audit trail of monitoring
// passes and the alerts they dispatched.
//
// It is observability only: the monitor never reads it back to make alerting
// decisions, so a missing or broken store degrades to log-only operation.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskwatch/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite; 0 means default
}

// PassAudit summarizes one monitoring pass.
type PassAudit struct {
	PassID    string
	StartedAt time.Time
	Jobs      int
	Alerts    int
	Sent      int
	Failed    int
	Pauses    int
	TookMS    int64
	Error     string
}

// AlertAudit records one dispatched alert within a pass.
type AlertAudit struct {
	PassID      string
	At          time.Time
	JobID       string
	JobName     string
	GapSec      int64
	IntervalSec int64
	Recipients  int
	Failed      int
}

// Store is the audit API used by the runner.
type Store interface {
	RecordPass(ctx context.Context, p PassAudit) error
	RecordAlert(ctx context.Context, a AlertAudit) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
