package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"taskwatch/internal/monitor"
	"taskwatch/internal/notify"
	"taskwatch/internal/registry"
	"taskwatch/internal/storage"
	"taskwatch/pkg/logx"
)

type fakeRegistry struct {
	jobs       []monitor.JobDescriptor
	recipients []string

	jobsErr error
	recErr  error

	recorded []string // marker ids passed to RecordLastRun
	lastTS   time.Time
}

func (f *fakeRegistry) FetchJobs(context.Context) ([]monitor.JobDescriptor, error) {
	return f.jobs, f.jobsErr
}

func (f *fakeRegistry) FetchRecipients(context.Context) ([]string, error) {
	return f.recipients, f.recErr
}

func (f *fakeRegistry) RecordLastRun(_ context.Context, markerID string, ts time.Time) error {
	f.recorded = append(f.recorded, markerID)
	f.lastTS = ts
	return nil
}

type fakeDispatcher struct {
	calls      int
	alerts     []monitor.AlertRecord
	recipients []string
	rep        notify.Report
	err        error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, alerts []monitor.AlertRecord, recipients []string) (notify.Report, error) {
	f.calls++
	f.alerts = alerts
	f.recipients = recipients
	return f.rep, f.err
}

type memStore struct {
	passes []storage.PassAudit
	alerts []storage.AlertAudit
}

func (m *memStore) RecordPass(_ context.Context, p storage.PassAudit) error {
	m.passes = append(m.passes, p)
	return nil
}

func (m *memStore) RecordAlert(_ context.Context, a storage.AlertAudit) error {
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memStore) Close() error { return nil }

func staleJob(id string, now time.Time) monitor.JobDescriptor {
	return monitor.JobDescriptor{
		ID:          id,
		Name:        "job-" + id,
		WindowStart: monitor.TimeOfDay(0),
		WindowEnd:   monitor.TimeOfDay(0), // whole day
		Interval:    300 * time.Second,
		LastRunAt:   now.Add(-1000 * time.Second),
	}
}

func newTestRunner(reg registry.Registry, disp Dispatcher, store storage.Store, now time.Time) *Runner {
	eval := monitor.NewEvaluator(3, 0, nil, logx.Nop())
	r := New(reg, eval, disp, store, "0", logx.Nop())
	r.now = func() time.Time { return now }
	return r
}

func TestRunPassDispatchesAndRecordsMarker(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 14, 14, 0, 0, 0, time.Local)
	reg := &fakeRegistry{
		jobs:       []monitor.JobDescriptor{staleJob("1", now), staleJob("2", now)},
		recipients: []string{"101", "102"},
	}
	disp := &fakeDispatcher{rep: notify.Report{Attempted: 4, Sent: 4}}
	st := &memStore{}

	r := newTestRunner(reg, disp, st, now)
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if disp.calls != 1 {
		t.Fatalf("dispatcher called %d times, want 1", disp.calls)
	}
	if len(disp.alerts) != 2 || disp.alerts[0].JobID != "1" || disp.alerts[1].JobID != "2" {
		t.Fatalf("dispatched alerts = %+v, want jobs 1 and 2 in order", disp.alerts)
	}
	if len(disp.recipients) != 2 {
		t.Fatalf("recipients = %v, want 2 entries", disp.recipients)
	}

	if len(reg.recorded) != 1 || reg.recorded[0] != "0" {
		t.Fatalf("RecordLastRun calls = %v, want one for marker 0", reg.recorded)
	}
	if !reg.lastTS.Equal(now) {
		t.Fatalf("recorded ts = %v, want %v", reg.lastTS, now)
	}

	if len(st.passes) != 1 || st.passes[0].Alerts != 2 || st.passes[0].Sent != 4 {
		t.Fatalf("pass audit = %+v, want 2 alerts / 4 sent", st.passes)
	}
	if len(st.alerts) != 2 {
		t.Fatalf("alert audits = %d, want 2", len(st.alerts))
	}
	if st.alerts[0].GapSec != 1000 || st.alerts[0].IntervalSec != 300 {
		t.Fatalf("alert audit = %+v, want gap 1000 / interval 300", st.alerts[0])
	}
}

func TestRunPassNoAlertsSkipsDispatch(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 14, 14, 0, 0, 0, time.Local)
	fresh := staleJob("1", now)
	fresh.LastRunAt = now.Add(-10 * time.Second)
	reg := &fakeRegistry{jobs: []monitor.JobDescriptor{fresh}, recipients: []string{"101"}}
	disp := &fakeDispatcher{}

	r := newTestRunner(reg, disp, nil, now)
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if disp.calls != 0 {
		t.Fatal("dispatcher must not run when there are no alerts")
	}
	if len(reg.recorded) != 1 {
		t.Fatal("marker must be recorded even on a quiet pass")
	}
}

func TestRunPassRegistryErrorsAreFatal(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 14, 14, 0, 0, 0, time.Local)

	reg := &fakeRegistry{jobsErr: fmt.Errorf("%w: conn refused", registry.ErrUnavailable)}
	disp := &fakeDispatcher{}
	r := newTestRunner(reg, disp, nil, now)

	err := r.RunPass(context.Background())
	if !errors.Is(err, registry.ErrUnavailable) {
		t.Fatalf("err = %v, want registry.ErrUnavailable", err)
	}
	if disp.calls != 0 {
		t.Fatal("no dispatch after a failed fetch")
	}
	if len(reg.recorded) != 0 {
		t.Fatal("marker must not be recorded on a failed pass")
	}
}

func TestRunPassFormatErrorFailsWholePass(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 14, 14, 0, 0, 0, time.Local)
	reg := &fakeRegistry{
		jobsErr: &registry.FormatError{Row: 3, Column: "last_run_at", Err: errors.New("bad timestamp")},
	}
	r := newTestRunner(reg, &fakeDispatcher{}, nil, now)

	err := r.RunPass(context.Background())
	var fe *registry.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *registry.FormatError", err)
	}
}

func TestRunPassPartialSendFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 14, 14, 0, 0, 0, time.Local)
	reg := &fakeRegistry{
		jobs:       []monitor.JobDescriptor{staleJob("1", now)},
		recipients: []string{"101", "102", "103"},
	}
	disp := &fakeDispatcher{rep: notify.Report{Attempted: 3, Sent: 2, Failed: 1}}

	r := newTestRunner(reg, disp, nil, now)
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass must tolerate partial send failure, got %v", err)
	}
	if len(reg.recorded) != 1 {
		t.Fatal("marker must still be recorded after partial failure")
	}
}

func TestRunPassCancelledDispatchAborts(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 14, 14, 0, 0, 0, time.Local)
	reg := &fakeRegistry{
		jobs:       []monitor.JobDescriptor{staleJob("1", now)},
		recipients: []string{"101"},
	}
	disp := &fakeDispatcher{err: context.Canceled}

	r := newTestRunner(reg, disp, nil, now)
	err := r.RunPass(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(reg.recorded) != 0 {
		t.Fatal("marker must not be recorded after an aborted dispatch")
	}
}
