package ratemodel

import "time"

// HoursPerDay bounds window hours to [0, HoursPerDay).
const HoursPerDay = 24.0

// AllDays is the full daysOfWeek set, Sunday first.
var AllDays = []int{0, 1, 2, 3, 4, 5, 6}

// HourOfDay returns the fractional local hour of t.
func HourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// ContainsHour reports whether the fractional hour falls in [start, end) with
// wraparound when the window crosses midnight.
func (w TimeWindow) ContainsHour(h float64) bool {
	switch {
	case w.StartHour == w.EndHour:
		return true
	case w.StartHour < w.EndHour:
		return h >= w.StartHour && h < w.EndHour
	default:
		return h >= w.StartHour || h < w.EndHour
	}
}

// MatchesDay reports whether the weekday is in DaysOfWeek.
func (w TimeWindow) MatchesDay(d time.Weekday) bool {
	return containsInt(w.DaysOfWeek, int(d))
}

// MatchesMonth reports whether the month is selected. No months means every month.
func (w TimeWindow) MatchesMonth(m time.Month) bool {
	return len(w.Months) == 0 || containsInt(w.Months, int(m))
}

// Matches reports whether the window applies to the local timestamp.
func (w TimeWindow) Matches(t time.Time) bool {
	return w.MatchesDay(t.Weekday()) && w.MatchesMonth(t.Month()) && w.ContainsHour(HourOfDay(t))
}

// Segments returns the window's coverage as half-open [start, end) hour
// segments on [0, 24).
func (w TimeWindow) Segments() [][2]float64 {
	switch {
	case w.StartHour == w.EndHour:
		return [][2]float64{{0, HoursPerDay}}
	case w.StartHour < w.EndHour:
		return [][2]float64{{w.StartHour, w.EndHour}}
	case w.EndHour == 0:
		return [][2]float64{{w.StartHour, HoursPerDay}}
	default:
		return [][2]float64{{w.StartHour, HoursPerDay}, {0, w.EndHour}}
	}
}

// IsAllDays reports whether the window selects all seven weekdays.
func (w TimeWindow) IsAllDays() bool {
	seen := make(map[int]bool, 7)
	for _, d := range w.DaysOfWeek {
		if d >= 0 && d <= 6 {
			seen[d] = true
		}
	}
	return len(seen) == 7
}

// IsPriced reports whether the window carries a rate or is explicitly free.
func (w TimeWindow) IsPriced() bool {
	return w.IsFree || w.RateCentsPerKwh != nil
}
