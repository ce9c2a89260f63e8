package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskwatch/internal/monitor"
	"taskwatch/pkg/logx"
)

// Postgres reads the job registry from a Postgres database.
//
// Schema (all text except interval_seconds): monitored_jobs(id, name,
// window_start "HH:MM", window_end "HH:MM", interval_seconds, last_run_at
// "YYYY-MM-DD HH:MM:SS", active yes/no) and alert_recipients(chat_id,
// position). The loose text columns mirror the upstream sheet this registry
// is synced from; parsing them here is the schema validation.
type Postgres struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func OpenPostgres(ctx context.Context, dsn string, log logx.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// FetchJobs returns every active job, in registry order. Rows flagged
// inactive are dropped here so the evaluator only ever sees jobs whose
// absence of activity is meaningful.
func (p *Postgres) FetchJobs(ctx context.Context) ([]monitor.JobDescriptor, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, window_start, window_end, interval_seconds, last_run_at, active
		FROM monitored_jobs
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch jobs: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var jobs []monitor.JobDescriptor
	rowNum := 0
	for rows.Next() {
		rowNum++
		var r jobRow
		if err := rows.Scan(&r.ID, &r.Name, &r.WindowStart, &r.WindowEnd, &r.IntervalSec, &r.LastRun, &r.Active); err != nil {
			return nil, &FormatError{Row: rowNum, Column: "*", Err: err}
		}
		job, active, err := r.parse(rowNum)
		if err != nil {
			return nil, err
		}
		if !active {
			continue
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fetch jobs: %v", ErrUnavailable, err)
	}
	p.log.Debug("jobs fetched", logx.Int("rows", rowNum), logx.Int("active", len(jobs)))
	return jobs, nil
}

// FetchRecipients returns the ordered chat list. A single cell may hold
// several comma-separated chat ids; order is preserved across cells.
func (p *Postgres) FetchRecipients(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT chat_id FROM alert_recipients ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch recipients: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: fetch recipients: %v", ErrUnavailable, err)
		}
		out = append(out, splitRecipients(raw)...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fetch recipients: %v", ErrUnavailable, err)
	}
	return out, nil
}

// RecordLastRun writes the monitor's own last-run timestamp to its marker row.
func (p *Postgres) RecordLastRun(ctx context.Context, markerID string, ts time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE monitored_jobs SET last_run_at = $2 WHERE id = $1`,
		markerID, ts.Format(lastRunLayout))
	if err != nil {
		return fmt.Errorf("%w: record last run: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record last run: marker row %q not found", ErrUnavailable, markerID)
	}
	return nil
}
