// Package estimation builds synthetic usage profiles and computes the modeled
// average price a rate model implies at a given monthly usage.
package estimation

import (
	"time"

	"github.com/shopspring/decimal"

	"efl-cost/decision/billing"
	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/units"
)

// AverageScale is the number of decimal places kept on modeled averages.
const AverageScale = 4

// ReferenceStart anchors every synthetic cycle so results never depend on the
// wall clock.
var ReferenceStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// ProfileFunc builds the interval series for a cycle of usageKwh.
type ProfileFunc func(usageKwh float64) []billing.Interval

// FlatProfile spreads totalKwh evenly over days starting at start, one
// interval per step.
func FlatProfile(start time.Time, days int, totalKwh float64, step time.Duration) []billing.Interval {
	perDay := units.IntervalsPerDay(step)
	n := days * perDay
	if n <= 0 {
		return nil
	}
	each := totalKwh / float64(n)
	out := make([]billing.Interval, n)
	for i := range out {
		out[i] = billing.Interval{
			Start:     start.Add(time.Duration(i) * step),
			ImportKwh: each,
		}
	}
	return out
}

// SyntheticMonth is the disclosure convention: a 30-day cycle of hourly
// intervals with usage spread evenly.
func SyntheticMonth(usageKwh float64) []billing.Interval {
	return FlatProfile(ReferenceStart, units.SyntheticCycleDays, usageKwh, time.Hour)
}

// ModeledAverageCents bills the model over the profile for usageKwh and
// returns the average price in cents/kWh, rounded to AverageScale places.
// A nil profile uses SyntheticMonth.
func ModeledAverageCents(m *ratemodel.RateModel, usageKwh float64, profile ProfileFunc) decimal.Decimal {
	if profile == nil {
		profile = SyntheticMonth
	}
	if usageKwh <= 0 {
		return decimal.Zero
	}
	bill := billing.Compute(m, profile(usageKwh))
	total := units.DollarsToCents(bill.TotalDollars)
	return total.Div(decimal.NewFromFloat(usageKwh)).Round(AverageScale)
}

// DefaultRateShare returns the fraction of profile kWh priced at the default
// rate, i.e. matched by no window. A plain flat model returns 1.
func DefaultRateShare(m *ratemodel.RateModel, usageKwh float64, profile ProfileFunc) float64 {
	if profile == nil {
		profile = SyntheticMonth
	}
	var total, atDefault float64
	for _, iv := range profile(usageKwh) {
		total += iv.ImportKwh
		if matchesNoWindow(m, iv.Start) {
			atDefault += iv.ImportKwh
		}
	}
	if total == 0 {
		return 0
	}
	return atDefault / total
}

// PricedShare returns the fraction of profile kWh priced at a non-free rate,
// from a window rate or the default.
func PricedShare(m *ratemodel.RateModel, usageKwh float64, profile ProfileFunc) float64 {
	if profile == nil {
		profile = SyntheticMonth
	}
	var total, priced float64
	for _, iv := range profile(usageKwh) {
		total += iv.ImportKwh
		if !isFreeAt(m, iv.Start) {
			priced += iv.ImportKwh
		}
	}
	if total == 0 {
		return 0
	}
	return priced / total
}

func matchesNoWindow(m *ratemodel.RateModel, ts time.Time) bool {
	for _, w := range m.TimeWindows {
		if w.Matches(ts) {
			return false
		}
	}
	return true
}

func isFreeAt(m *ratemodel.RateModel, ts time.Time) bool {
	for _, w := range m.TimeWindows {
		if w.Matches(ts) {
			return w.IsFree
		}
	}
	return false
}
