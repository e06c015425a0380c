package ratemodel

import "github.com/shopspring/decimal"

// Disclosed anchor usage levels in kWh.
const (
	Anchor500  = 500.0
	Anchor1000 = 1000.0
	Anchor2000 = 2000.0
)

// Anchors are the disclosed average prices in cents/kWh. Any may be absent.
type Anchors struct {
	At500  *decimal.Decimal `json:"at500"`
	At1000 *decimal.Decimal `json:"at1000"`
	At2000 *decimal.Decimal `json:"at2000"`
}

// AnchorPoint is one present anchor.
type AnchorPoint struct {
	UsageKwh float64         `json:"usageKwh"`
	AvgCents decimal.Decimal `json:"avgCentsPerKwh"`
}

// Points returns present anchors in ascending usage order.
func (a Anchors) Points() []AnchorPoint {
	points := make([]AnchorPoint, 0, 3)
	for _, p := range []struct {
		usage float64
		v     *decimal.Decimal
	}{
		{Anchor500, a.At500},
		{Anchor1000, a.At1000},
		{Anchor2000, a.At2000},
	} {
		if p.v != nil {
			points = append(points, AnchorPoint{UsageKwh: p.usage, AvgCents: *p.v})
		}
	}
	return points
}

// Count returns the number of present anchors.
func (a Anchors) Count() int {
	return len(a.Points())
}

// NewAnchors builds anchors from optional float values.
func NewAnchors(at500, at1000, at2000 *float64) Anchors {
	conv := func(f *float64) *decimal.Decimal {
		if f == nil {
			return nil
		}
		return Dec(*f)
	}
	return Anchors{At500: conv(at500), At1000: conv(at1000), At2000: conv(at2000)}
}
