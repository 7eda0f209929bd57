package util

import (
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (fractional seconds allowed) or a positive unix
// timestamp. Timestamps above 1e12 are read as milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	switch {
	case err != nil || ts <= 0:
		return time.Time{}, false
	case ts > 1e12:
		return time.UnixMilli(ts), true
	default:
		return time.Unix(ts, 0), true
	}
}

// HumanDuration renders d as "3h12m" / "45s" for status lines.
func HumanDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return strconv.Itoa(m) + "m" + strconv.Itoa(int((d%time.Minute)/time.Second)) + "s"
	}
	return strconv.Itoa(h) + "h" + strconv.Itoa(m) + "m"
}
