// Package elapsed renders the time passed since an on-chain event.
// Explorer timestamps are nanoseconds since the Unix epoch.
package elapsed

import (
	"fmt"
	"strings"
	"time"
)

// Since returns the duration between the nanosecond timestamp and now.
// Timestamps in the future (clock skew between us and the indexer) yield zero.
func Since(tsNanos int64, now time.Time) time.Duration {
	d := now.Sub(time.Unix(0, tsNanos))
	if d < 0 {
		return 0
	}
	return d
}

// Hours returns the whole hours elapsed since tsNanos.
// Partial hours are floored, so 7199s is 1 and 7200s is 2.
func Hours(tsNanos int64, now time.Time) int {
	return int(Since(tsNanos, now) / time.Hour)
}

// Human renders the elapsed time as e.g. "1 day, 2 hours, 1 minute, 30 seconds".
// Zero components are omitted; a zero duration renders as "0 seconds".
func Human(tsNanos int64, now time.Time) string {
	return FormatDuration(Since(tsNanos, now))
}

// FormatDuration renders d with second resolution in the same form as Human.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		n := total / u.size
		total %= u.size
		if n == 0 {
			continue
		}
		parts = append(parts, plural(n, u.name))
	}
	return strings.Join(parts, ", ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
