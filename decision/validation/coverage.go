package validation

import (
	"fmt"
	"sort"

	"efl-cost/decision/ratemodel"
)

const eps = 1e-9

// CoversAllTime reports whether the windows price every hour of every
// weekday in every month.
func CoversAllTime(windows []ratemodel.TimeWindow) bool {
	for month := 1; month <= 12; month++ {
		for day := 0; day <= 6; day++ {
			segs := make([][2]float64, 0)
			for _, w := range windows {
				if selectsDay(w, day) && selectsMonth(w, month) {
					segs = append(segs, w.Segments()...)
				}
			}
			if !coversDay(segs) {
				return false
			}
		}
	}
	return true
}

// Overlap reports whether two windows can match the same instant.
func Overlap(a, b ratemodel.TimeWindow) bool {
	if !sharesDay(a, b) || !sharesMonth(a, b) {
		return false
	}
	for _, sa := range a.Segments() {
		for _, sb := range b.Segments() {
			if sa[0] < sb[1]-eps && sb[0] < sa[1]-eps {
				return true
			}
		}
	}
	return false
}

func coversDay(segs [][2]float64) bool {
	if len(segs) == 0 {
		return false
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i][0] < segs[j][0] })
	reach := 0.0
	for _, s := range segs {
		if s[0] > reach+eps {
			return false
		}
		if s[1] > reach {
			reach = s[1]
		}
	}
	return reach >= ratemodel.HoursPerDay-eps
}

func selectsDay(w ratemodel.TimeWindow, day int) bool {
	for _, d := range w.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

func selectsMonth(w ratemodel.TimeWindow, month int) bool {
	if len(w.Months) == 0 {
		return true
	}
	for _, m := range w.Months {
		if m == month {
			return true
		}
	}
	return false
}

func sharesDay(a, b ratemodel.TimeWindow) bool {
	for _, d := range a.DaysOfWeek {
		if selectsDay(b, d) {
			return true
		}
	}
	return false
}

func sharesMonth(a, b ratemodel.TimeWindow) bool {
	if len(a.Months) == 0 || len(b.Months) == 0 {
		return true
	}
	for _, m := range a.Months {
		if selectsMonth(b, m) {
			return true
		}
	}
	return false
}

func windowField(i int) string {
	return indexField("timeWindows", i)
}

func indexField(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}

func labelOf(w ratemodel.TimeWindow, i int) string {
	if w.Label != "" {
		return w.Label
	}
	return fmt.Sprintf("#%d", i)
}
