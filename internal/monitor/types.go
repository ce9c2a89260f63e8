package monitor

import "time"

// JobDescriptor is one monitored background job as reported by the registry.
//
// The monitor treats it as read-only: LastRunAt is advanced only by the job
// itself. The one exception is the monitor's own marker row, whose last-run
// timestamp is written back at the end of each pass.
type JobDescriptor struct {
	ID   string
	Name string

	// WindowStart/WindowEnd bound the job's active operating hours.
	// WindowStart > WindowEnd denotes a window crossing midnight.
	WindowStart TimeOfDay
	WindowEnd   TimeOfDay

	// Interval is the expected maximum gap between two runs. Always > 0.
	Interval time.Duration

	LastRunAt time.Time
}

// AlertRecord is one detected staleness violation. It lives only within a
// single monitoring pass: the dispatcher consumes it and throws it away.
type AlertRecord struct {
	JobID     string
	JobName   string
	LastRunAt time.Time

	// Interval is the job's configured allowed gap; ObservedGap is what we
	// actually measured (truncated to whole seconds). ObservedGap exceeds
	// Interval times the miss threshold whenever a record exists.
	Interval    time.Duration
	ObservedGap time.Duration
}
