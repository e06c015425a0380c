package estimation

import (
	"github.com/shopspring/decimal"

	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/units"
)

// InterpolateAnchors estimates the average price at usageKwh from the anchor
// curve. Interpolation is linear in 1/usage, which is exact for any plan made
// of an energy rate plus a fixed monthly amount. Outside the anchor range the
// nearest segment is extended; a single anchor is treated as constant.
// Returns false when there are no anchors or usage is not positive.
func InterpolateAnchors(points []ratemodel.AnchorPoint, usageKwh float64) (decimal.Decimal, bool) {
	if len(points) == 0 || usageKwh <= 0 {
		return decimal.Zero, false
	}
	if len(points) == 1 {
		return points[0].AvgCents, true
	}

	lo, hi := points[0], points[1]
	for i := 1; i < len(points); i++ {
		lo, hi = points[i-1], points[i]
		if usageKwh <= hi.UsageKwh {
			break
		}
	}

	// avg(u) = a + b/u through (lo, hi).
	x := decimal.NewFromInt(1).Div(decimal.NewFromFloat(usageKwh))
	xLo := decimal.NewFromInt(1).Div(decimal.NewFromFloat(lo.UsageKwh))
	xHi := decimal.NewFromInt(1).Div(decimal.NewFromFloat(hi.UsageKwh))
	slope := hi.AvgCents.Sub(lo.AvgCents).Div(xHi.Sub(xLo))
	v := lo.AvgCents.Add(slope.Mul(x.Sub(xLo)))
	return v.Round(AverageScale), true
}

// IsBetweenAnchors reports whether usageKwh lies strictly inside the range
// spanned by the present anchors.
func IsBetweenAnchors(points []ratemodel.AnchorPoint, usageKwh float64) bool {
	if len(points) < 2 {
		return false
	}
	return usageKwh > points[0].UsageKwh && usageKwh < points[len(points)-1].UsageKwh
}

// Approximation is an anchor-interpolated bill estimate for plans that
// cannot be priced per interval.
type Approximation struct {
	UsageKwh       float64         `json:"usageKwh"`
	AvgCentsPerKwh decimal.Decimal `json:"avgCentsPerKwh"`
	TotalDollars   decimal.Decimal `json:"totalDollars"`
	Mode           string          `json:"mode"`
}

// ModeApproximateAnchor tags estimates derived from the disclosed anchors.
const ModeApproximateAnchor = "APPROXIMATE_ANCHOR"

// Approximate estimates the monthly bill at usageKwh from the anchors alone.
func Approximate(anchors ratemodel.Anchors, usageKwh float64) (Approximation, bool) {
	avg, ok := InterpolateAnchors(anchors.Points(), usageKwh)
	if !ok {
		return Approximation{}, false
	}
	return Approximation{
		UsageKwh:       usageKwh,
		AvgCentsPerKwh: avg,
		TotalDollars:   units.ChargeDollars(avg, usageKwh).Round(2),
		Mode:           ModeApproximateAnchor,
	}, true
}
