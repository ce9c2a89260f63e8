package notify

import (
	"fmt"
	"strings"
	"time"

	"taskwatch/internal/monitor"
)

// timeLayout is the operator-facing timestamp format, shared with the
// registry's last-run column.
const timeLayout = "2006-01-02 15:04:05"

// RenderAlert builds the HTML message for one alert. The job name, last-run
// timestamp, observed gap and allowed interval all appear verbatim so an
// operator can triage from the message alone.
func RenderAlert(rec monitor.AlertRecord) string {
	var b strings.Builder
	b.WriteString("‼️<b>                    ALERT                    </b>‼️\n\n")
	b.WriteString("Job exceeded its run interval:\n")
	fmt.Fprintf(&b, "<code>%s</code>\n", rec.JobName)
	fmt.Fprintf(&b, "Last run: <code>%s</code>\n", rec.LastRunAt.Format(timeLayout))
	fmt.Fprintf(&b, "Observed gap (sec): <code>%d</code>\n", int64(rec.ObservedGap/time.Second))
	fmt.Fprintf(&b, "Allowed interval (sec): <code>%d</code>\n", int64(rec.Interval/time.Second))
	return b.String()
}
