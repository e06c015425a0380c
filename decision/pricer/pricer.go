// Package pricer prices a single consumption interval against a rate model.
// It has no cycle-level logic: base charges, bill credits and minimum-usage
// fees are applied by decision/billing.
package pricer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/units"
)

// DefaultPeriodLabel is reported when no time window matched.
const DefaultPeriodLabel = "default"

// Charge is the priced result of one interval.
type Charge struct {
	ImportChargeDollars     decimal.Decimal `json:"importChargeDollars"`
	ExportCreditDollars     decimal.Decimal `json:"exportCreditDollars"`
	PeriodLabel             string          `json:"periodLabel"`
	ImportRateCentsPerKwh   decimal.Decimal `json:"importRateCentsPerKwh"`
	ExportCreditCentsPerKwh decimal.Decimal `json:"exportCreditCentsPerKwh"`
	IsFree                  bool            `json:"isFree"`
}

// Price returns the charge for importKwh/exportKwh consumed in the interval
// starting at ts (local time). It never fails: an under-specified model prices
// at zero, so callers validate first.
func Price(m *ratemodel.RateModel, ts time.Time, importKwh, exportKwh float64) Charge {
	if m == nil {
		return Charge{PeriodLabel: DefaultPeriodLabel}
	}

	rate, label, free := ActiveRate(m, ts)
	c := Charge{
		PeriodLabel:           label,
		ImportRateCentsPerKwh: rate,
		IsFree:                free,
		ImportChargeDollars:   units.ChargeDollars(rate, importKwh),
	}

	exportRate := exportCreditRate(m.SolarBuyback, rate)
	c.ExportCreditCentsPerKwh = exportRate
	c.ExportCreditDollars = units.ChargeDollars(exportRate, exportKwh)
	return c
}

// ActiveRate returns the import rate in effect at ts, the label of the period
// it came from and whether that period is free. The first matching window wins.
func ActiveRate(m *ratemodel.RateModel, ts time.Time) (decimal.Decimal, string, bool) {
	if i := MatchWindow(m, ts); i >= 0 {
		w := m.TimeWindows[i]
		label := w.Label
		if label == "" {
			label = WindowLabel(w)
		}
		if w.IsFree || w.RateCentsPerKwh == nil {
			return decimal.Zero, label, w.IsFree
		}
		return *w.RateCentsPerKwh, label, false
	}
	if m.DefaultRateCentsPerKwh == nil {
		return decimal.Zero, DefaultPeriodLabel, false
	}
	return *m.DefaultRateCentsPerKwh, DefaultPeriodLabel, false
}

// MatchWindow returns the index of the first window matching ts, or -1.
func MatchWindow(m *ratemodel.RateModel, ts time.Time) int {
	for i, w := range m.TimeWindows {
		if w.Matches(ts) {
			return i
		}
	}
	return -1
}

// WindowLabel names an unlabeled window by its hours.
func WindowLabel(w ratemodel.TimeWindow) string {
	return formatHour(w.StartHour) + "-" + formatHour(w.EndHour)
}

func formatHour(h float64) string {
	mins := int(h*60 + 0.5)
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

func exportCreditRate(sb *ratemodel.SolarBuyback, importRate decimal.Decimal) decimal.Decimal {
	if sb == nil || !sb.HasBuyback {
		return decimal.Zero
	}
	if sb.MatchesImportRate != nil && *sb.MatchesImportRate {
		return importRate
	}
	if sb.CreditCentsPerKwh != nil {
		return *sb.CreditCentsPerKwh
	}
	return decimal.Zero
}
