package monitor

import (
	"time"

	"taskwatch/pkg/logx"
)

// DefaultMissThreshold is how many consecutive cycles a job may miss before
// an alert fires. A single missed interval is common noise (network delay,
// scheduler jitter); three misses bound detection latency at
// Interval*DefaultMissThreshold while avoiding false positives.
const DefaultMissThreshold = 3

// DefaultWindowGrace absorbs scheduler jitter at window open.
const DefaultWindowGrace = 20 * time.Second

// Evaluator applies the staleness rule to job descriptors.
//
// The zero value is not usable; construct with NewEvaluator.
type Evaluator struct {
	missThreshold int
	windowGrace   time.Duration
	exclude       map[string]struct{}
	log           logx.Logger
}

func NewEvaluator(missThreshold int, windowGrace time.Duration, exclude []string, log logx.Logger) *Evaluator {
	if missThreshold <= 0 {
		missThreshold = DefaultMissThreshold
	}
	if windowGrace < 0 {
		windowGrace = DefaultWindowGrace
	}
	ex := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		ex[id] = struct{}{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Evaluator{missThreshold: missThreshold, windowGrace: windowGrace, exclude: ex, log: log}
}

// Evaluate checks a single job against now and returns an alert record if the
// job is stale. A job alerts only when all three hold: now is inside its
// operating window, the observed gap exceeds Interval times the miss
// threshold, and the job id is not excluded.
func (ev *Evaluator) Evaluate(job JobDescriptor, now time.Time) (AlertRecord, bool) {
	if _, skip := ev.exclude[job.ID]; skip {
		return AlertRecord{}, false
	}

	// Whole seconds, truncated.
	gap := now.Sub(job.LastRunAt).Truncate(time.Second)

	start := job.WindowStart.Add(ev.windowGrace)
	if !InWindow(TimeOfDayFrom(now), start, job.WindowEnd) {
		return AlertRecord{}, false
	}

	if gap <= job.Interval*time.Duration(ev.missThreshold) {
		return AlertRecord{}, false
	}

	ev.log.Info("stale job detected",
		logx.String("job_id", job.ID),
		logx.String("job_name", job.Name),
		logx.Duration("gap", gap),
		logx.Duration("interval", job.Interval))

	return AlertRecord{
		JobID:       job.ID,
		JobName:     job.Name,
		LastRunAt:   job.LastRunAt,
		Interval:    job.Interval,
		ObservedGap: gap,
	}, true
}

// Batch runs Evaluate over the whole job set and collects the alerts,
// preserving input order. It never mutates the descriptors.
func (ev *Evaluator) Batch(jobs []JobDescriptor, now time.Time) []AlertRecord {
	var alerts []AlertRecord
	for _, job := range jobs {
		if rec, ok := ev.Evaluate(job, now); ok {
			alerts = append(alerts, rec)
		}
	}
	return alerts
}
