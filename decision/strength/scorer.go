// Package strength grades a reconciliation PASS by checking usage levels the
// fit never saw. Only PASS + STRONG may be served without manual review.
package strength

import (
	"fmt"

	"github.com/shopspring/decimal"

	"efl-cost/decision/estimation"
	"efl-cost/decision/ratemodel"
	"efl-cost/decision/reconcile"
	"efl-cost/pkg/confidence"
)

// Strength grades a PASS.
type Strength string

const (
	StrengthStrong  Strength = "STRONG"
	StrengthWeak    Strength = "WEAK"
	StrengthInvalid Strength = "INVALID"
)

// Reason codes.
const (
	ReasonNotPass              = "NOT_PASS"
	ReasonRateOutOfBounds      = "RATE_OUT_OF_BOUNDS"
	ReasonOffPointOutOfBounds  = "OFF_POINT_OUT_OF_BOUNDS"
	ReasonOffPointDivergence   = "OFF_POINT_DIVERGENCE"
	ReasonUncorroboratedFit    = "UNCORROBORATED_FIT"
	ReasonExactlyDeterminedFit = "EXACTLY_DETERMINED_FIT"
)

// OffPoints are the usage levels checked besides the anchors.
var OffPoints = []float64{250, 750, 1500, 3000}

var (
	// MaxSaneCents bounds every rate and off-point average.
	MaxSaneCents = decimal.NewFromInt(200)
	// OffPointTolerance is the accepted gap between the model and the anchor
	// curve at intermediate usage, in cents/kWh.
	OffPointTolerance = decimal.NewFromFloat(0.5)
)

// Reason explains a grade.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OffPointDiff is the model evaluated at one off-point.
type OffPointDiff struct {
	UsageKwh        float64         `json:"usageKwh"`
	ModeledAvgCents decimal.Decimal `json:"modeledAvgCentsPerKwh"`
	// Interpolated values are set only between present anchors.
	InterpolatedAvgCents *decimal.Decimal `json:"interpolatedAvgCentsPerKwh,omitempty"`
	DiffCents            *decimal.Decimal `json:"diffCents,omitempty"`
}

// Score is the graded outcome.
type Score struct {
	Strength      Strength       `json:"strength"`
	Confidence    float64        `json:"confidence"`
	Reasons       []Reason       `json:"reasons"`
	OffPointDiffs []OffPointDiff `json:"offPointDiffs"`
}

// IsServable reports whether the plan may be priced for customers without review.
func (s Score) IsServable() bool {
	return s.Strength == StrengthStrong
}

// Grade grades a reconciliation result.
func Grade(res reconcile.Result) Score {
	return score(res, nil)
}

// GradeWithProfile grades using a custom synthetic profile.
func GradeWithProfile(res reconcile.Result, profile estimation.ProfileFunc) Score {
	return score(res, profile)
}

func score(res reconcile.Result, profile estimation.ProfileFunc) Score {
	s := Score{
		Strength:      StrengthStrong,
		Reasons:       make([]Reason, 0),
		OffPointDiffs: make([]OffPointDiff, 0, len(OffPoints)),
	}
	if !res.IsPass() {
		s.Strength = StrengthInvalid
		s.Reasons = append(s.Reasons, Reason{ReasonNotPass, fmt.Sprintf("reconciliation status is %s", res.Status)})
		return s
	}

	m := res.DerivedModel
	points := res.Points()
	invalid, weak := false, false

	for _, field := range outOfBoundsRates(m) {
		invalid = true
		s.Reasons = append(s.Reasons, Reason{ReasonRateOutOfBounds, field + " outside [0, 200] cents/kWh"})
	}

	scores := make([]float64, 0, len(OffPoints)+len(res.AnchorDiffs))
	for _, d := range res.AnchorDiffs {
		scores = append(scores, confidence.FromResidual(d.DiffCents.InexactFloat64(), 0.05))
	}

	for _, u := range OffPoints {
		modeled := estimation.ModeledAverageCents(m, u, profile)
		od := OffPointDiff{UsageKwh: u, ModeledAvgCents: modeled}

		if modeled.IsNegative() || modeled.GreaterThan(MaxSaneCents) {
			invalid = true
			s.Reasons = append(s.Reasons, Reason{ReasonOffPointOutOfBounds,
				fmt.Sprintf("modeled average %s cents/kWh at %g kWh is outside [0, 200]", modeled, u)})
		}

		if estimation.IsBetweenAnchors(points, u) {
			if interp, ok := estimation.InterpolateAnchors(points, u); ok {
				diff := modeled.Sub(interp).Abs()
				od.InterpolatedAvgCents = &interp
				od.DiffCents = &diff
				scores = append(scores, confidence.FromResidual(diff.InexactFloat64(), OffPointTolerance.InexactFloat64()))
				if diff.GreaterThan(OffPointTolerance) {
					weak = true
					s.Reasons = append(s.Reasons, Reason{ReasonOffPointDivergence,
						fmt.Sprintf("modeled %s vs anchor curve %s cents/kWh at %g kWh", modeled, interp, u)})
				}
			}
		}
		s.OffPointDiffs = append(s.OffPointDiffs, od)
	}

	if len(points) < 2 {
		weak = true
		s.Reasons = append(s.Reasons, Reason{ReasonUncorroboratedFit,
			fmt.Sprintf("only %d anchor(s) disclosed; off-points cannot be corroborated", len(points))})
	}
	if res.ParametersFit > 0 && res.ParametersFit >= len(points) {
		weak = true
		s.Reasons = append(s.Reasons, Reason{ReasonExactlyDeterminedFit,
			fmt.Sprintf("%d parameter(s) fit to %d anchor(s)", res.ParametersFit, len(points))})
	}

	switch {
	case invalid:
		s.Strength = StrengthInvalid
		s.Confidence = 0
	case weak:
		s.Strength = StrengthWeak
		s.Confidence = confidence.Decay(confidence.MediumConfidence*confidence.Aggregate(scores), len(s.Reasons))
	default:
		s.Confidence = confidence.Clamp(confidence.HighConfidence * confidence.Aggregate(scores))
	}
	return s
}

// outOfBoundsRates lists the fields whose rate lies outside [0, MaxSaneCents].
func outOfBoundsRates(m *ratemodel.RateModel) []string {
	out := make([]string, 0)
	check := func(field string, d *decimal.Decimal) {
		if d != nil && (d.IsNegative() || d.GreaterThan(MaxSaneCents)) {
			out = append(out, field)
		}
	}
	check("defaultRateCentsPerKwh", m.DefaultRateCentsPerKwh)
	for i := range m.TimeWindows {
		check(fmt.Sprintf("timeWindows[%d].rateCentsPerKwh", i), m.TimeWindows[i].RateCentsPerKwh)
	}
	if m.SolarBuyback != nil {
		check("solarBuyback.creditCentsPerKwh", m.SolarBuyback.CreditCentsPerKwh)
	}
	check("currentBillEnergyRateCents", m.CurrentBillEnergyRateCents)
	return out
}

// ManualReviewNote is appended to the queue reason of any non-STRONG PASS.
const ManualReviewNote = "requires manual review before customer-facing pricing"

// Apply returns a copy of res whose queue reason records a non-STRONG grade.
// The existing reason is kept.
func Apply(res reconcile.Result, s Score) reconcile.Result {
	if res.Status != reconcile.StatusPass || s.Strength == StrengthStrong {
		return res
	}
	note := fmt.Sprintf("strength %s: %s", s.Strength, ManualReviewNote)
	if res.QueueReason == "" {
		res.QueueReason = note
	} else {
		res.QueueReason = res.QueueReason + "; " + note
	}
	return res
}
