package progress

import (
	"strconv"
	"strings"
	"time"
)

// FormatTime renders seconds using the two largest non-zero units among
// days, hours, minutes, whole seconds and milliseconds, e.g. "1D1h" or "3s250ms".
func FormatTime(seconds float64) string {
	days := int(seconds / 3600 / 24)
	seconds -= float64(days) * 3600 * 24
	hours := int(seconds / 3600)
	seconds -= float64(hours) * 3600
	minutes := int(seconds / 60)
	seconds -= float64(minutes) * 60
	whole := int(seconds)
	seconds -= float64(whole)
	millis := int(seconds * 1000)

	units := []struct {
		value  int
		suffix string
	}{
		{days, "D"},
		{hours, "h"},
		{minutes, "m"},
		{whole, "s"},
		{millis, "ms"},
	}

	var sb strings.Builder
	shown := 0
	for _, u := range units {
		if u.value <= 0 || shown == 2 {
			continue
		}
		sb.WriteString(strconv.Itoa(u.value))
		sb.WriteString(u.suffix)
		shown++
	}
	if shown == 0 {
		return "0ms"
	}
	return sb.String()
}

// FormatDuration is FormatTime for a time.Duration.
func FormatDuration(d time.Duration) string {
	return FormatTime(d.Seconds())
}
