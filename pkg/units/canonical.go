// Package units provides canonical energy and money units and conversions.
package units

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyntheticCycleDays is the billing-cycle length assumed by disclosure averages.
const SyntheticCycleDays = 30

var hundred = decimal.NewFromInt(100)

// CentsToDollars converts cents to dollars.
func CentsToDollars(cents decimal.Decimal) decimal.Decimal {
	return cents.Div(hundred)
}

// DollarsToCents converts dollars to cents.
func DollarsToCents(dollars decimal.Decimal) decimal.Decimal {
	return dollars.Mul(hundred)
}

// ChargeDollars prices kWh at a cents/kWh rate and returns dollars.
func ChargeDollars(rateCents decimal.Decimal, kwh float64) decimal.Decimal {
	if kwh == 0 || rateCents.IsZero() {
		return decimal.Zero
	}
	return rateCents.Mul(decimal.NewFromFloat(kwh)).Div(hundred)
}

// IntervalsPerDay returns how many intervals of the given step fit in a day.
func IntervalsPerDay(step time.Duration) int {
	if step <= 0 {
		return 0
	}
	return int((24 * time.Hour) / step)
}
