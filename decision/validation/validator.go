// Package validation is the fail-closed structural check on a rate model.
// Anything that cannot be resolved unambiguously is an ERROR; a model with
// any ERROR requires manual review and is never priced automatically.
package validation

import (
	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/diag"
)

// Verdict is the outcome of validating one model.
type Verdict struct {
	IsValid              bool      `json:"isValid"`
	RequiresManualReview bool      `json:"requiresManualReview"`
	Issues               diag.List `json:"issues"`
}

// Validate checks every rule and collects all issues.
func Validate(m *ratemodel.RateModel) Verdict {
	issues := make(diag.List, 0)
	if m == nil {
		issues.Add(diag.CodeMissingDefaultRate, diag.SeverityError, "", "no rate model")
		return verdict(issues)
	}

	checkEnergy(m, &issues)
	checkWindows(m, &issues)

	if m.BaseChargeCentsPerMonth != nil && m.BaseChargeCentsPerMonth.IsNegative() {
		issues.Add(diag.CodeInvalidBaseCharge, diag.SeverityWarning, "baseChargeCentsPerMonth",
			"base charge %s is negative", m.BaseChargeCentsPerMonth)
	}
	if m.HasTiers() {
		issues.Add(diag.CodeUsageTiersManualReview, diag.SeverityError, "usageTiers",
			"%d usage tier(s) declared; tiered pricing is not auto-priced", len(m.UsageTiers))
	}

	checkAdjustments(m, &issues)

	if m.IsIndexed() {
		issues.Add(diag.CodeIndexedApproximateOnly, diag.SeverityInfo, "variableIndexType",
			"indexed plan can only be priced approximately from anchors")
	}
	return verdict(issues)
}

func verdict(issues diag.List) Verdict {
	review := issues.HasErrors()
	return Verdict{IsValid: !review, RequiresManualReview: review, Issues: issues}
}

func checkEnergy(m *ratemodel.RateModel, issues *diag.List) {
	def := m.DefaultRateCentsPerKwh
	if def != nil && def.IsNegative() {
		issues.Add(diag.CodeNegativeDefaultRate, diag.SeverityError, "defaultRateCentsPerKwh",
			"default rate %s is negative", def)
	}
	if m.HasWindows() {
		if def == nil && !CoversAllTime(m.TimeWindows) {
			issues.Add(diag.CodeIncompleteCoverage, diag.SeverityError, "timeWindows",
				"time windows leave hours unpriced and no default rate is set")
		}
		return
	}
	if def == nil {
		issues.Add(diag.CodeMissingDefaultRate, diag.SeverityError, "defaultRateCentsPerKwh",
			"no time windows and no default rate")
	}
}

func checkWindows(m *ratemodel.RateModel, issues *diag.List) {
	usable := make([]int, 0, len(m.TimeWindows))
	for i, w := range m.TimeWindows {
		field := windowField(i)
		ok := true
		if !w.IsPriced() {
			issues.Add(diag.CodeMissingWindowRate, diag.SeverityError, field,
				"window %q has no rate and is not free", w.Label)
		}
		if w.IsFree && w.RateCentsPerKwh != nil {
			issues.Add(diag.CodeAmbiguousWindowRate, diag.SeverityWarning, field,
				"window %q is free but also states rate %s; priced as free", w.Label, w.RateCentsPerKwh)
		}
		if w.RateCentsPerKwh != nil && w.RateCentsPerKwh.IsNegative() {
			issues.Add(diag.CodeNegativeWindowRate, diag.SeverityError, field,
				"window %q rate %s is negative", w.Label, w.RateCentsPerKwh)
		}
		if !validHour(w.StartHour) || !validHour(w.EndHour) {
			issues.Add(diag.CodeInvalidWindowHours, diag.SeverityError, field,
				"window %q hours %v-%v outside [0,24)", w.Label, w.StartHour, w.EndHour)
			ok = false
		}
		if msg := calendarDefect(w); msg != "" {
			issues.Add(diag.CodeInvalidWindowCalendar, diag.SeverityError, field,
				"window %q %s", w.Label, msg)
			ok = false
		}
		if ok {
			usable = append(usable, i)
		}
	}

	for a := 0; a < len(usable); a++ {
		for b := a + 1; b < len(usable); b++ {
			wa, wb := m.TimeWindows[usable[a]], m.TimeWindows[usable[b]]
			if Overlap(wa, wb) {
				issues.Add(diag.CodeOverlappingWindows, diag.SeverityError, windowField(usable[b]),
					"windows %q and %q both match the same hours", labelOf(wa, usable[a]), labelOf(wb, usable[b]))
			}
		}
	}
}

func checkAdjustments(m *ratemodel.RateModel, issues *diag.List) {
	for i, c := range m.BillCredits {
		// Behavioral credits are recognized but never earned from usage.
		if !c.IsUsageBased() {
			continue
		}
		if !c.IsWellFormed() {
			issues.Add(diag.CodeInvalidBillCredit, diag.SeverityWarning, indexField("billCredits", i),
				"bill credit %q is malformed", c.Label)
		}
	}
	if f := m.MinimumUsageFee; f != nil && !f.IsWellFormed() {
		issues.Add(diag.CodeInvalidMinimumUsageFee, diag.SeverityWarning, "minimumUsageFee",
			"minimum usage fee needs a positive fee and threshold")
	}
	if sb := m.SolarBuyback; sb != nil && sb.HasBuyback && !sb.IsPriced() {
		issues.Add(diag.CodeSolarBuybackUnpriced, diag.SeverityWarning, "solarBuyback",
			"buyback declared without a credit rate")
	}
}

func validHour(h float64) bool {
	return h >= 0 && h < ratemodel.HoursPerDay
}

func calendarDefect(w ratemodel.TimeWindow) string {
	if len(w.DaysOfWeek) == 0 {
		return "selects no days"
	}
	for _, d := range w.DaysOfWeek {
		if d < 0 || d > 6 {
			return "has a day outside 0-6"
		}
	}
	for _, mo := range w.Months {
		if mo < 1 || mo > 12 {
			return "has a month outside 1-12"
		}
	}
	return ""
}
