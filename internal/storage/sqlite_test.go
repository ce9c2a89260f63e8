package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %v, want nil store", driver, st)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	pass := PassAudit{
		PassID:    "p1",
		StartedAt: time.Now(),
		Jobs:      5,
		Alerts:    1,
		Sent:      3,
		Failed:    1,
		TookMS:    120,
	}
	if err := st.RecordPass(ctx, pass); err != nil {
		t.Fatalf("RecordPass: %v", err)
	}
	if err := st.RecordAlert(ctx, AlertAudit{
		PassID:      "p1",
		JobID:       "6",
		JobName:     "order-sync",
		GapSec:      1000,
		IntervalSec: 300,
		Recipients:  3,
		Failed:      1,
	}); err != nil {
		t.Fatalf("RecordAlert: %v", err)
	}

	// Reopen to prove the rows landed on disk.
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st2, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	ss, ok := st2.(*sqliteStore)
	if !ok {
		t.Fatalf("store type = %T, want *sqliteStore", st2)
	}
	var passes, alerts int
	if err := ss.db.QueryRow(`SELECT count(*) FROM passes`).Scan(&passes); err != nil {
		t.Fatalf("count passes: %v", err)
	}
	if err := ss.db.QueryRow(`SELECT count(*) FROM alerts`).Scan(&alerts); err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if passes != 1 || alerts != 1 {
		t.Fatalf("rows = %d passes / %d alerts, want 1/1", passes, alerts)
	}
}
