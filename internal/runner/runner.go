// Package runner drives one monitoring pass end to end: fetch a consistent
// snapshot from the registry, evaluate it, dispatch alerts, record the
// monitor's own last-run marker.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskwatch/internal/monitor"
	"taskwatch/internal/notify"
	"taskwatch/internal/registry"
	"taskwatch/internal/storage"
	"taskwatch/pkg/logx"
)

// Dispatcher is what the runner needs from the notification pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, alerts []monitor.AlertRecord, recipients []string) (notify.Report, error)
}

type Runner struct {
	reg      registry.Registry
	store    storage.Store // nil when auditing is disabled
	markerID string
	log      logx.Logger
	now      func() time.Time

	// policy is swapped by Apply() on config reload; RunPass snapshots it.
	mu   sync.Mutex
	eval *monitor.Evaluator
	disp Dispatcher
}

func New(reg registry.Registry, eval *monitor.Evaluator, disp Dispatcher, store storage.Store, markerID string, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		reg:      reg,
		store:    store,
		markerID: markerID,
		log:      log,
		now:      time.Now,
		eval:     eval,
		disp:     disp,
	}
}

// Apply swaps the evaluation and dispatch policy. Safe to call between
// passes; a pass in flight keeps the policy it started with.
func (r *Runner) Apply(eval *monitor.Evaluator, disp Dispatcher) {
	r.mu.Lock()
	r.eval = eval
	r.disp = disp
	r.mu.Unlock()
}

// RunPass executes one monitoring pass. Registry errors are returned to the
// caller (fatal to the invocation); send failures are recovered inside the
// dispatcher and only show up in the report.
//
// All alerts are computed from the snapshot fetched up front, before any
// notification goes out, so a job's state cannot change mid-evaluation.
func (r *Runner) RunPass(ctx context.Context) error {
	r.mu.Lock()
	eval, disp := r.eval, r.disp
	r.mu.Unlock()

	passID := uuid.NewString()
	started := r.now()
	log := r.log.With(logx.String("pass", passID))
	log.Info("pass started")

	jobs, err := r.reg.FetchJobs(ctx)
	if err != nil {
		r.auditPass(ctx, storage.PassAudit{PassID: passID, StartedAt: started, Error: err.Error()})
		return fmt.Errorf("fetch jobs: %w", err)
	}
	recipients, err := r.reg.FetchRecipients(ctx)
	if err != nil {
		r.auditPass(ctx, storage.PassAudit{PassID: passID, StartedAt: started, Error: err.Error()})
		return fmt.Errorf("fetch recipients: %w", err)
	}

	now := r.now()
	alerts := eval.Batch(jobs, now)

	var rep notify.Report
	if len(alerts) > 0 {
		log.Info("dispatching alerts",
			logx.Int("alerts", len(alerts)),
			logx.Int("recipients", len(recipients)))
		rep, err = disp.Dispatch(ctx, alerts, recipients)
		if err != nil {
			// Only cancellation aborts a dispatch.
			r.auditPass(ctx, storage.PassAudit{
				PassID: passID, StartedAt: started, Jobs: len(jobs), Alerts: len(alerts),
				Sent: rep.Sent, Failed: rep.Failed, Pauses: rep.Pauses,
				TookMS: r.now().Sub(started).Milliseconds(), Error: err.Error(),
			})
			return err
		}
		failedByJob := make(map[string]int, len(rep.Failures))
		for _, f := range rep.Failures {
			failedByJob[f.JobID]++
		}
		for _, a := range alerts {
			r.auditAlert(ctx, storage.AlertAudit{
				PassID:      passID,
				At:          now,
				JobID:       a.JobID,
				JobName:     a.JobName,
				GapSec:      int64(a.ObservedGap / time.Second),
				IntervalSec: int64(a.Interval / time.Second),
				Recipients:  len(recipients),
				Failed:      failedByJob[a.JobID],
			})
		}
	}

	if err := r.reg.RecordLastRun(ctx, r.markerID, now); err != nil {
		return fmt.Errorf("record last run: %w", err)
	}

	r.auditPass(ctx, storage.PassAudit{
		PassID: passID, StartedAt: started, Jobs: len(jobs), Alerts: len(alerts),
		Sent: rep.Sent, Failed: rep.Failed, Pauses: rep.Pauses,
		TookMS: r.now().Sub(started).Milliseconds(),
	})

	log.Info("pass completed",
		logx.Int("jobs", len(jobs)),
		logx.Int("alerts", len(alerts)),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed))
	return nil
}

func (r *Runner) auditPass(ctx context.Context, p storage.PassAudit) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordPass(ctx, p); err != nil {
		r.log.Warn("pass audit write failed", logx.Err(err))
	}
}

func (r *Runner) auditAlert(ctx context.Context, a storage.AlertAudit) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordAlert(ctx, a); err != nil {
		r.log.Warn("alert audit write failed", logx.Err(err))
	}
}
