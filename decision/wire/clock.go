package wire

import (
	"fmt"
	"math"
)

// lastMinute is 23:59, the latest clock time the wire accepts.
const lastMinute = 24*60 - 1

// formatClock renders a fractional hour as "HH:MM". Without minute
// resolution the hour is floored. Hours that round up to midnight clamp to
// 23:59 so the result always parses back.
func formatClock(h float64, minutes bool) string {
	if !minutes {
		return fmt.Sprintf("%02d:00", int(math.Floor(h)))
	}
	total := int(math.Round(h * 60))
	if total > lastMinute {
		total = lastMinute
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func isWholeHour(h float64) bool {
	return h == math.Floor(h)
}

func parseClock(s string) (float64, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return float64(hh) + float64(mm)/60, nil
}
