package splits

import (
	"fmt"
	"time"
)

// FormatTime renders a duration as m:s.ms, e.g. "1:02.0" or "0:31.100".
// Ported from the original's format_time (timebay_tui/src/splits.rs),
// which prints whole milliseconds rather than a fixed number of decimals.
func FormatTime(d time.Duration) string {
	totalSec := int64(d / time.Second)
	minutes := totalSec / 60
	seconds := totalSec % 60
	millis := (d % time.Second) / time.Millisecond
	return fmt.Sprintf("%d:%02d.%d", minutes, seconds, millis)
}

// FormatDiff renders a millisecond diff with an explicit sign, as seconds
// with up to 3 decimals, e.g. "-1.5" for -1500ms or "+0.25" for +250ms.
func FormatDiff(diffMS int32) string {
	sec := float64(diffMS) / 1000.0
	s := fmt.Sprintf("%+g", sec)
	return s
}
