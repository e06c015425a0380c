package wire

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"efl-cost/decision/ratemodel"
	"efl-cost/decision/validation"
	"efl-cost/pkg/diag"
	"efl-cost/pkg/units"
)

// ErrModelNotValid is returned when the model fails validation.
var ErrModelNotValid = errors.New("rate model is not valid")

// Options control projection.
type Options struct {
	// MinuteResolution emits exact "HH:MM" boundaries instead of flooring
	// to the hour.
	MinuteResolution bool
}

// Project converts a validated model to a RateStructure. Lossy boundary
// truncation is reported as warnings.
func Project(m *ratemodel.RateModel, opts Options) (RateStructure, diag.List, error) {
	issues := make(diag.List, 0)
	v := validation.Validate(m)
	if !v.IsValid {
		if first, ok := v.Issues.First(diag.SeverityError); ok {
			return RateStructure{}, v.Issues, fmt.Errorf("%w: %s", ErrModelNotValid, first.Code)
		}
		return RateStructure{}, v.Issues, ErrModelNotValid
	}

	rs := RateStructure{
		BaseMonthlyFeeCents: floatPtr(m.BaseChargeCentsPerMonth),
		BillCredits:         projectCredits(m.BillCredits),
	}

	if !m.HasWindows() {
		rs.Type = TypeFixed
		rs.EnergyRateCents = floatPtr(m.DefaultRateCentsPerKwh)
		return rs, issues, nil
	}

	rs.Type = TypeTimeOfWindow
	rs.EnergyRateCents = floatPtr(m.DefaultRateCentsPerKwh)
	rs.Tiers = make([]Tier, 0, len(m.TimeWindows))
	for i, w := range m.TimeWindows {
		price := 0.0
		if !w.IsFree && w.RateCentsPerKwh != nil {
			price = w.RateCentsPerKwh.InexactFloat64()
		}
		tier := Tier{
			Label:        w.Label,
			PriceCents:   price,
			StartTime:    formatClock(w.StartHour, opts.MinuteResolution),
			EndTime:      formatClock(w.EndHour, opts.MinuteResolution),
			DaysOfWeek:   Days(append([]int(nil), w.DaysOfWeek...)),
			MonthsOfYear: append([]int(nil), w.Months...),
		}
		if len(tier.MonthsOfYear) == 0 {
			tier.MonthsOfYear = nil
		}
		if !opts.MinuteResolution {
			for _, h := range []float64{w.StartHour, w.EndHour} {
				if !isWholeHour(h) {
					issues.Add(diag.CodeWindowBoundaryTruncated, diag.SeverityWarning, fmt.Sprintf("timeWindows[%d]", i),
						"window %q boundary %s truncated to %s", w.Label,
						formatClock(h, true), formatClock(h, false))
				}
			}
		}
		rs.Tiers = append(rs.Tiers, tier)
	}
	return rs, issues, nil
}

func projectCredits(credits []ratemodel.BillCredit) BillCredits {
	out := BillCredits{Rules: make([]CreditRule, 0)}
	for _, c := range credits {
		// Behavioral and malformed credits are never projected.
		if !c.IsUsageBased() || !c.IsWellFormed() {
			continue
		}
		rule := CreditRule{
			Label:             c.Label,
			CreditAmountCents: units.DollarsToCents(c.CreditDollars).InexactFloat64(),
			MinUsageKWh:       *c.ThresholdKwh,
			MonthsOfYear:      append([]int(nil), c.MonthsOfYear...),
		}
		if c.MaxKwh != nil {
			v := *c.MaxKwh
			rule.MaxUsageKWh = &v
		}
		if len(rule.MonthsOfYear) == 0 {
			rule.MonthsOfYear = nil
		}
		out.Rules = append(out.Rules, rule)
	}
	out.HasBillCredit = len(out.Rules) > 0
	return out
}

// ToModel maps a RateStructure back to a rate model.
func ToModel(rs RateStructure) (*ratemodel.RateModel, error) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh:  decimalPtr(rs.EnergyRateCents),
		BaseChargeCentsPerMonth: decimalPtr(rs.BaseMonthlyFeeCents),
	}

	switch rs.Type {
	case TypeFixed:
		m.PlanType = ratemodel.PlanFlat
	case TypeTimeOfWindow:
		m.PlanType = ratemodel.PlanTimeOfWindow
		m.TimeWindows = make([]ratemodel.TimeWindow, 0, len(rs.Tiers))
		for _, t := range rs.Tiers {
			start, err := parseClock(t.StartTime)
			if err != nil {
				return nil, fmt.Errorf("tier %q: %w", t.Label, err)
			}
			end, err := parseClock(t.EndTime)
			if err != nil {
				return nil, fmt.Errorf("tier %q: %w", t.Label, err)
			}
			w := ratemodel.TimeWindow{
				Label:      t.Label,
				StartHour:  start,
				EndHour:    end,
				DaysOfWeek: append([]int(nil), t.DaysOfWeek...),
				Months:     append([]int(nil), t.MonthsOfYear...),
			}
			if len(w.Months) == 0 {
				w.Months = nil
			}
			if t.PriceCents == 0 {
				w.IsFree = true
			} else {
				rate := decimal.NewFromFloat(t.PriceCents)
				w.RateCentsPerKwh = &rate
			}
			m.TimeWindows = append(m.TimeWindows, w)
		}
	default:
		return nil, fmt.Errorf("unknown rate structure type: %q", rs.Type)
	}

	for _, r := range rs.BillCredits.Rules {
		threshold := r.MinUsageKWh
		c := ratemodel.BillCredit{
			Label:         r.Label,
			CreditDollars: units.CentsToDollars(decimal.NewFromFloat(r.CreditAmountCents)),
			ThresholdKwh:  &threshold,
			MonthsOfYear:  append([]int(nil), r.MonthsOfYear...),
		}
		if r.MaxUsageKWh != nil {
			v := *r.MaxUsageKWh
			c.MaxKwh = &v
		}
		if len(c.MonthsOfYear) == 0 {
			c.MonthsOfYear = nil
		}
		m.BillCredits = append(m.BillCredits, c)
	}
	return m, nil
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
