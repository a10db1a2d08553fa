package utils

import (
	"fmt"
	"time"
)

// Now returns current time (useful for mocking in tests)
var Now = time.Now

// FormatClock renders 24h wall clock time, e.g. "09:05:03".
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatDate renders e.g. "07 March 2024".
func FormatDate(t time.Time) string {
	return t.Format("02 January 2006")
}

// FormatLastSeen renders the coarse "time since" label shown next to an
// employee.
func FormatLastSeen(seen, now time.Time) string {
	seconds := now.Sub(seen).Seconds()
	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return fmt.Sprintf("%d min ago", int(seconds/60))
	case seconds < 86400:
		return plural(int(seconds/3600), "hour")
	default:
		return plural(int(seconds/86400), "day")
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", d/time.Minute, (d%time.Minute)/time.Second)
	}
	return fmt.Sprintf("%dh%dm", d/time.Hour, (d%time.Hour)/time.Minute)
}
