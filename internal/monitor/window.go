package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a clock time with no date component, stored as seconds since
// midnight. Valid values are [0, 86400).
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("time of day %q: want HH:MM or HH:MM:SS", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("time of day %q: %w", s, err)
		}
		nums[i] = n
	}
	h, m, sec := nums[0], nums[1], 0
	if len(nums) == 3 {
		sec = nums[2]
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day %q: out of range", s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// TimeOfDayFrom extracts the clock time of t in its own location.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Add shifts the clock time by d, carrying across midnight. Naive addition
// would overflow past 24:00, which matters when a window opens late in the
// evening.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	s := (int(t) + int(d/time.Second)) % secondsPerDay
	if s < 0 {
		s += secondsPerDay
	}
	return TimeOfDay(s)
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// InWindow reports whether now falls inside the [start, end] operating window,
// bounds inclusive. start >= end denotes a window that crosses midnight; in
// that branch the window is never empty (start == end covers the whole day).
func InWindow(now, start, end TimeOfDay) bool {
	if start < end {
		return start <= now && now <= end
	}
	return now <= end || now >= start
}
