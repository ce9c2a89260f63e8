// Package registry is the boundary to the external job registry: a tabular
// store holding job descriptors, the alert recipient list, and the monitor's
// own last-run marker.
//
// Error policy: a transport/auth failure surfaces as ErrUnavailable, a row
// that cannot be parsed surfaces as *FormatError. Both are fatal to the whole
// monitoring pass: a partially parsed job set could silently omit a failing
// job from evaluation, which is worse than not running at all.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskwatch/internal/monitor"
)

// ErrUnavailable marks network or auth failures reaching the registry.
var ErrUnavailable = errors.New("registry unavailable")

// FormatError reports a row whose data does not fit the expected schema:
// a missing required field, an unparsable time, a non-boolean flag.
type FormatError struct {
	Row    int
	Column string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("registry row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Registry is the read side of the job store plus the single write the
// monitor is allowed: recording its own last-run timestamp.
type Registry interface {
	FetchJobs(ctx context.Context) ([]monitor.JobDescriptor, error)
	FetchRecipients(ctx context.Context) ([]string, error)
	RecordLastRun(ctx context.Context, markerID string, ts time.Time) error
}
