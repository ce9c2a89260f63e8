package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskwatch/internal/monitor"
)

// lastRunLayout matches the registry's last-run column and the format the
// monitor writes back for its own marker row.
const lastRunLayout = "2006-01-02 15:04:05"

// jobRow is one raw registry row before validation. All fields arrive as
// text; parsing them into typed values is the schema check.
type jobRow struct {
	ID          string
	Name        string
	WindowStart string
	WindowEnd   string
	IntervalSec int64
	LastRun     string
	Active      string
}

func (r jobRow) parse(rowNum int) (monitor.JobDescriptor, bool, error) {
	fail := func(col string, err error) (monitor.JobDescriptor, bool, error) {
		return monitor.JobDescriptor{}, false, &FormatError{Row: rowNum, Column: col, Err: err}
	}

	if strings.TrimSpace(r.ID) == "" {
		return fail("id", errors.New("missing"))
	}
	if strings.TrimSpace(r.Name) == "" {
		return fail("name", errors.New("missing"))
	}

	active, err := parseYesNo(r.Active)
	if err != nil {
		return fail("active", err)
	}

	start, err := monitor.ParseTimeOfDay(r.WindowStart)
	if err != nil {
		return fail("window_start", err)
	}
	end, err := monitor.ParseTimeOfDay(r.WindowEnd)
	if err != nil {
		return fail("window_end", err)
	}

	if r.IntervalSec <= 0 {
		return fail("interval_seconds", fmt.Errorf("must be positive, got %d", r.IntervalSec))
	}

	lastRun, err := time.ParseInLocation(lastRunLayout, strings.TrimSpace(r.LastRun), time.Local)
	if err != nil {
		return fail("last_run_at", err)
	}

	return monitor.JobDescriptor{
		ID:          strings.TrimSpace(r.ID),
		Name:        strings.TrimSpace(r.Name),
		WindowStart: start,
		WindowEnd:   end,
		Interval:    time.Duration(r.IntervalSec) * time.Second,
		LastRunAt:   lastRun,
	}, active, nil
}

// parseYesNo accepts the registry's loose boolean encoding. Anything outside
// the known spellings is a schema violation, never a silent default.
func parseYesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return true, nil
	case "no", "n", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("not a yes/no value: %q", s)
	}
}

// splitRecipients expands a registry cell that may hold several
// comma-separated chat identifiers.
func splitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
