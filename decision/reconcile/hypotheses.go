package reconcile

import (
	"github.com/shopspring/decimal"

	"efl-cost/decision/estimation"
	"efl-cost/decision/ratemodel"
)

// Repair step names, in search order.
const (
	StepRebaseDefaultRate   = "rebase_default_rate"
	StepShiftEnergyRates    = "shift_energy_rates"
	StepTextBaseCharge      = "text_base_charge"
	StepDeriveBaseCharge    = "derive_base_charge"
	StepTextMinimumUsageFee = "text_minimum_usage_fee"
	StepTextBillCredit      = "text_bill_credit"
	StepFitRateAndBase      = "fit_rate_and_base"
)

const (
	rateScale = 4
	feeScale  = 2
)

type state struct {
	draft    *ratemodel.RateModel
	points   []ratemodel.AnchorPoint
	diffs    []AnchorDiff
	evidence Evidence
	profile  estimation.ProfileFunc
}

// hypothesis returns ok=false when it does not apply to the draft. An
// applicable hypothesis that cannot produce a candidate returns a nil model
// and a note.
type hypothesis struct {
	name   string
	params int
	apply  func(st *state) (*ratemodel.RateModel, string, bool)
}

var hypotheses = []hypothesis{
	{StepRebaseDefaultRate, 1, rebaseDefaultRate},
	{StepShiftEnergyRates, 1, shiftEnergyRates},
	{StepTextBaseCharge, 0, textBaseCharge},
	{StepDeriveBaseCharge, 1, deriveBaseCharge},
	{StepTextMinimumUsageFee, 0, textMinimumUsageFee},
	{StepTextBillCredit, 0, textBillCredit},
	{StepFitRateAndBase, 2, fitRateAndBase},
}

// Names lists the repair steps in search order.
func Names() []string {
	out := make([]string, len(hypotheses))
	for i, h := range hypotheses {
		out[i] = h.name
	}
	return out
}

// closest returns the index of the anchor with the smallest residual; ties
// go to the lower usage.
func (st *state) closest() int {
	best := 0
	for i := 1; i < len(st.diffs); i++ {
		if st.diffs[i].DiffCents.LessThan(st.diffs[best].DiffCents) {
			best = i
		}
	}
	return best
}

// residual is expected minus modeled at anchor i, in cents/kWh.
func (st *state) residual(i int) decimal.Decimal {
	return st.diffs[i].ExpectedAvgCents.Sub(st.diffs[i].ModeledAvgCents)
}

func rebaseDefaultRate(st *state) (*ratemodel.RateModel, string, bool) {
	if st.draft.DefaultRateCentsPerKwh == nil {
		return nil, "", false
	}
	k := st.closest()
	share := estimation.DefaultRateShare(st.draft, st.points[k].UsageKwh, st.profile)
	if share <= 0 {
		return nil, "", false
	}
	shift := st.residual(k).Div(decimal.NewFromFloat(share)).Round(rateScale)
	if shift.IsZero() {
		return nil, "", false
	}
	rate := st.draft.DefaultRateCentsPerKwh.Add(shift)
	if rate.IsNegative() {
		return nil, "default rate would be negative", true
	}
	m := st.draft.Clone()
	m.DefaultRateCentsPerKwh = &rate
	return m, "default rate " + st.draft.DefaultRateCentsPerKwh.String() + " -> " + rate.String(), true
}

func shiftEnergyRates(st *state) (*ratemodel.RateModel, string, bool) {
	if !st.draft.HasWindows() {
		return nil, "", false
	}
	k := st.closest()
	share := estimation.PricedShare(st.draft, st.points[k].UsageKwh, st.profile)
	if share <= 0 {
		return nil, "", false
	}
	shift := st.residual(k).Div(decimal.NewFromFloat(share)).Round(rateScale)
	if shift.IsZero() {
		return nil, "", false
	}

	m := st.draft.Clone()
	if m.DefaultRateCentsPerKwh != nil {
		v := m.DefaultRateCentsPerKwh.Add(shift)
		if v.IsNegative() {
			return nil, "default rate would be negative", true
		}
		m.DefaultRateCentsPerKwh = &v
	}
	for i := range m.TimeWindows {
		w := &m.TimeWindows[i]
		if w.IsFree || w.RateCentsPerKwh == nil {
			continue
		}
		v := w.RateCentsPerKwh.Add(shift)
		if v.IsNegative() {
			return nil, "window rate would be negative", true
		}
		w.RateCentsPerKwh = &v
	}
	return m, "energy rates shifted by " + shift.String(), true
}

func textBaseCharge(st *state) (*ratemodel.RateModel, string, bool) {
	stated := st.evidence.BaseChargeCents
	if stated == nil || hasBaseCharge(st.draft) {
		return nil, "", false
	}
	m := st.draft.Clone()
	v := *stated
	m.BaseChargeCentsPerMonth = &v
	return m, "base charge " + v.String() + "¢ from disclosure text", true
}

func deriveBaseCharge(st *state) (*ratemodel.RateModel, string, bool) {
	// points are ascending, so index 0 is the lowest anchor.
	add := st.residual(0).Mul(decimal.NewFromFloat(st.points[0].UsageKwh)).Round(feeScale)
	if add.IsZero() {
		return nil, "", false
	}
	base := add
	if st.draft.BaseChargeCentsPerMonth != nil {
		base = st.draft.BaseChargeCentsPerMonth.Add(add)
	}
	if base.IsNegative() {
		return nil, "derived base charge would be negative", true
	}
	m := st.draft.Clone()
	m.BaseChargeCentsPerMonth = &base
	return m, "base charge " + base.String() + "¢ derived at lowest anchor", true
}

func textMinimumUsageFee(st *state) (*ratemodel.RateModel, string, bool) {
	stated := st.evidence.MinimumUsageFee
	if stated == nil || st.draft.MinimumUsageFee != nil {
		return nil, "", false
	}
	m := st.draft.Clone()
	fee := *stated
	m.MinimumUsageFee = &fee
	return m, "minimum usage fee $" + fee.FeeDollars.String() + " from disclosure text", true
}

func textBillCredit(st *state) (*ratemodel.RateModel, string, bool) {
	stated := st.evidence.BillCredit
	if stated == nil || hasUsageCredit(st.draft) {
		return nil, "", false
	}
	m := st.draft.Clone()
	credit := *stated
	m.BillCredits = append(m.BillCredits, credit)
	return m, "bill credit $" + credit.CreditDollars.String() + " from disclosure text", true
}

// fitRateAndBase solves for a default-rate shift s and base charge B using
// the lowest and highest anchors:
//
//	r = s*share + B/u
func fitRateAndBase(st *state) (*ratemodel.RateModel, string, bool) {
	if st.draft.DefaultRateCentsPerKwh == nil || len(st.points) < 2 {
		return nil, "", false
	}
	lo, hi := 0, len(st.points)-1
	ha := decimal.NewFromFloat(estimation.DefaultRateShare(st.draft, st.points[lo].UsageKwh, st.profile))
	hb := decimal.NewFromFloat(estimation.DefaultRateShare(st.draft, st.points[hi].UsageKwh, st.profile))
	xa := decimal.NewFromInt(1).Div(decimal.NewFromFloat(st.points[lo].UsageKwh))
	xb := decimal.NewFromInt(1).Div(decimal.NewFromFloat(st.points[hi].UsageKwh))
	ra, rb := st.residual(lo), st.residual(hi)

	det := ha.Mul(xb).Sub(hb.Mul(xa))
	if det.IsZero() {
		return nil, "", false
	}
	shift := ra.Mul(xb).Sub(rb.Mul(xa)).Div(det).Round(rateScale)
	add := ha.Mul(rb).Sub(hb.Mul(ra)).Div(det).Round(feeScale)

	rate := st.draft.DefaultRateCentsPerKwh.Add(shift)
	base := add
	if st.draft.BaseChargeCentsPerMonth != nil {
		base = st.draft.BaseChargeCentsPerMonth.Add(add)
	}
	if base.IsNegative() {
		return nil, "fitted base charge would be negative", true
	}
	if rate.IsNegative() {
		return nil, "fitted default rate would be negative", true
	}

	m := st.draft.Clone()
	m.DefaultRateCentsPerKwh = &rate
	m.BaseChargeCentsPerMonth = &base
	return m, "default rate " + rate.String() + ", base charge " + base.String() + "¢", true
}

func hasBaseCharge(m *ratemodel.RateModel) bool {
	return m.BaseChargeCentsPerMonth != nil && !m.BaseChargeCentsPerMonth.IsZero()
}

func hasUsageCredit(m *ratemodel.RateModel) bool {
	for _, c := range m.BillCredits {
		if c.IsUsageBased() {
			return true
		}
	}
	return false
}
