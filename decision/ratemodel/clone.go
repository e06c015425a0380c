package ratemodel

import "github.com/shopspring/decimal"

// Clone returns a deep copy. Corrections are always applied to a clone so a
// validated model is never mutated in place.
func (m *RateModel) Clone() *RateModel {
	if m == nil {
		return nil
	}
	out := &RateModel{
		PlanType:                   m.PlanType,
		DefaultRateCentsPerKwh:     cloneDecimal(m.DefaultRateCentsPerKwh),
		BaseChargeCentsPerMonth:    cloneDecimal(m.BaseChargeCentsPerMonth),
		VariableIndexType:          m.VariableIndexType,
		CurrentBillEnergyRateCents: cloneDecimal(m.CurrentBillEnergyRateCents),
	}

	if m.TimeWindows != nil {
		out.TimeWindows = make([]TimeWindow, len(m.TimeWindows))
		for i, w := range m.TimeWindows {
			w.DaysOfWeek = cloneInts(w.DaysOfWeek)
			w.Months = cloneInts(w.Months)
			w.RateCentsPerKwh = cloneDecimal(w.RateCentsPerKwh)
			out.TimeWindows[i] = w
		}
	}
	if m.UsageTiers != nil {
		out.UsageTiers = make([]UsageTier, len(m.UsageTiers))
		for i, t := range m.UsageTiers {
			t.MaxKwh = cloneFloat(t.MaxKwh)
			out.UsageTiers[i] = t
		}
	}
	if m.BillCredits != nil {
		out.BillCredits = make([]BillCredit, len(m.BillCredits))
		for i, c := range m.BillCredits {
			c.ThresholdKwh = cloneFloat(c.ThresholdKwh)
			c.MaxKwh = cloneFloat(c.MaxKwh)
			c.MonthsOfYear = cloneInts(c.MonthsOfYear)
			out.BillCredits[i] = c
		}
	}
	if m.MinimumUsageFee != nil {
		fee := *m.MinimumUsageFee
		out.MinimumUsageFee = &fee
	}
	if m.SolarBuyback != nil {
		sb := *m.SolarBuyback
		sb.CreditCentsPerKwh = cloneDecimal(sb.CreditCentsPerKwh)
		sb.MaxMonthlyExportKwh = cloneFloat(sb.MaxMonthlyExportKwh)
		if sb.MatchesImportRate != nil {
			v := *sb.MatchesImportRate
			sb.MatchesImportRate = &v
		}
		out.SolarBuyback = &sb
	}
	return out
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneInts(xs []int) []int {
	if xs == nil {
		return nil
	}
	out := make([]int, len(xs))
	copy(out, xs)
	return out
}

// Dec returns a pointer to a decimal, for building models in code.
func Dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// Float returns a pointer to a float64.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to a bool.
func Bool(v bool) *bool {
	return &v
}
