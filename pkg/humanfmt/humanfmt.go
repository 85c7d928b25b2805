// Package humanfmt provides human-readable formatting for byte sizes, counts,
// durations and bag creation dates.
package humanfmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Decimal (SI) units for bytes.
const (
	KB = 1000
	MB = 1000 * KB
	GB = 1000 * MB
	TB = 1000 * GB
	PB = 1000 * TB
)

// DateLayout is the layout of a bag's created_date.
const DateLayout = "2006-01-02T15:04:05.000000Z"

// Bytes formats a byte count using decimal units with one decimal place,
// e.g. "1 Byte", "999 Bytes", "1.2 kB", "3.4 GB".
func Bytes(b int64) string {
	if b < 0 {
		return "-" + Bytes(-b)
	}

	switch {
	case b == 1:
		return "1 Byte"
	case b < KB:
		return fmt.Sprintf("%d Bytes", b)
	case b < MB:
		return fmt.Sprintf("%.1f kB", float64(b)/KB)
	case b < GB:
		return fmt.Sprintf("%.1f MB", float64(b)/MB)
	case b < TB:
		return fmt.Sprintf("%.1f GB", float64(b)/GB)
	case b < PB:
		return fmt.Sprintf("%.1f TB", float64(b)/TB)
	default:
		return fmt.Sprintf("%.1f PB", float64(b)/PB)
	}
}

// IntComma formats n with a comma every three digits, e.g. "1,234,567".
func IntComma(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var sb strings.Builder
	sb.WriteString(sign)
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > len(sign) {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// Duration formats d compactly.
// Examples: "1.23s", "45.6ms", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		h := d / time.Hour
		m := (d % time.Hour) / time.Minute
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		m := d / time.Minute
		s := (d % time.Minute) / time.Second
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}

// Date renders a created_date for display. Dates falling on the same calendar
// day as now (in now's location) render relative to now ("3 minutes ago");
// any other date renders as "YYYY-MM-DD". Unparseable input is returned as is.
func Date(createdDate string, now time.Time) string {
	t, err := time.Parse(DateLayout, createdDate)
	if err != nil {
		return createdDate
	}

	local := t.In(now.Location())
	y1, m1, d1 := local.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return relative(now.Sub(t))
	}
	return t.Format("2006-01-02")
}

func relative(d time.Duration) string {
	suffix := "ago"
	if d < 0 {
		d, suffix = -d, "from now"
	}

	switch {
	case d < time.Second:
		return "now"
	case d < 2*time.Second:
		return "a second " + suffix
	case d < time.Minute:
		return fmt.Sprintf("%d seconds %s", d/time.Second, suffix)
	case d < 2*time.Minute:
		return "a minute " + suffix
	case d < time.Hour:
		return fmt.Sprintf("%d minutes %s", d/time.Minute, suffix)
	case d < 2*time.Hour:
		return "an hour " + suffix
	default:
		return fmt.Sprintf("%d hours %s", d/time.Hour, suffix)
	}
}
