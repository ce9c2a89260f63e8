package notify

import (
	"context"
	"time"

	"taskwatch/internal/monitor"
	"taskwatch/internal/transport"
	"taskwatch/pkg/logx"
)

const (
	// DefaultFloodLimit and DefaultFloodPause pace outbound sends so the
	// transport's rate limit is respected: after every DefaultFloodLimit
	// successful sends the dispatcher waits DefaultFloodPause before
	// continuing.
	DefaultFloodLimit = 19
	DefaultFloodPause = 60 * time.Second
)

type Config struct {
	FloodLimit int
	FloodPause time.Duration
}

// SendFailure records one failed delivery attempt.
type SendFailure struct {
	JobID     string
	Recipient string
	Err       error
}

// Report aggregates per-send outcomes of one dispatch invocation. Partial
// failure is not an error condition; the caller inspects Failed if it cares.
type Report struct {
	Attempted int
	Sent      int
	Failed    int
	Pauses    int
	Failures  []SendFailure
}

// Dispatcher fans alerts out to recipients with flood control.
type Dispatcher struct {
	adapter transport.Adapter
	cfg     Config
	log     logx.Logger

	// sleep is swapped out in tests to avoid real wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(adapter transport.Adapter, cfg Config, log logx.Logger) *Dispatcher {
	if cfg.FloodLimit <= 0 {
		cfg.FloodLimit = DefaultFloodLimit
	}
	if cfg.FloodPause <= 0 {
		cfg.FloodPause = DefaultFloodPause
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{adapter: adapter, cfg: cfg, log: log, sleep: sleepCtx}
}

// Dispatch renders each alert once and sends it to every recipient in order,
// outer loop over alerts, inner loop over recipients. The flood counter runs
// across the whole invocation: once it reaches the limit, the dispatcher
// pauses before the next send and resets. A send failure is logged and
// recorded but never stops the loop; only context cancellation aborts, and it
// also interrupts a pause in progress.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []monitor.AlertRecord, recipients []string) (Report, error) {
	var rep Report

	opt := transport.SendOptions{ParseMode: "HTML", DisablePreview: true}
	counter := 0

	for _, rec := range alerts {
		text := RenderAlert(rec)
		for _, to := range recipients {
			if err := ctx.Err(); err != nil {
				return rep, err
			}

			if counter >= d.cfg.FloodLimit {
				d.log.Warn("flood control pause",
					logx.Int("sent", rep.Sent),
					logx.Duration("pause", d.cfg.FloodPause))
				rep.Pauses++
				if err := d.sleep(ctx, d.cfg.FloodPause); err != nil {
					return rep, err
				}
				counter = 0
			}

			rep.Attempted++
			if err := d.adapter.SendText(ctx, to, text, opt); err != nil {
				if ctx.Err() != nil {
					return rep, ctx.Err()
				}
				rep.Failed++
				rep.Failures = append(rep.Failures, SendFailure{JobID: rec.JobID, Recipient: to, Err: err})
				d.log.Error("alert send failed",
					logx.String("job_id", rec.JobID),
					logx.String("recipient", to),
					logx.Err(err))
				continue
			}
			rep.Sent++
			counter++
		}
	}

	return rep, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
