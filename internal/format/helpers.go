package format

import (
	"fmt"
	"time"
)

// FmtDuration formats a stage duration as "1h 2m", "3m 4s", "5s" or "120ms".
func FmtDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		s := int(d.Seconds())
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	default:
		m := int(d.Minutes())
		return fmt.Sprintf("%dh %dm", m/60, m%60)
	}
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
