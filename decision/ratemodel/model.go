// Package ratemodel defines the common representation of a residential
// electricity plan's pricing rules. It is pure data: pricing lives in
// decision/pricer, cycle-level billing in decision/billing.
package ratemodel

import (
	"github.com/shopspring/decimal"
)

// PlanType is a descriptive tag. Pricing is driven by the model fields, not by this tag.
type PlanType string

const (
	PlanFlat              PlanType = "FLAT"
	PlanTimeOfWindow      PlanType = "TIME_OF_WINDOW"
	PlanIndexed           PlanType = "INDEXED"
	PlanSolarBuybackAddon PlanType = "SOLAR_BUYBACK_ADDON"
	PlanOther             PlanType = "OTHER"
)

// PlanTypes lists every accepted plan type.
var PlanTypes = []PlanType{PlanFlat, PlanTimeOfWindow, PlanIndexed, PlanSolarBuybackAddon, PlanOther}

// RateModel is one plan's pricing behavior.
type RateModel struct {
	PlanType PlanType `json:"planType"`

	// Energy
	DefaultRateCentsPerKwh  *decimal.Decimal `json:"defaultRateCentsPerKwh"`
	BaseChargeCentsPerMonth *decimal.Decimal `json:"baseChargeCentsPerMonth"`
	TimeWindows             []TimeWindow     `json:"timeWindows"`
	UsageTiers              []UsageTier      `json:"usageTiers"`

	// Cycle-level adjustments
	BillCredits     []BillCredit     `json:"billCredits"`
	MinimumUsageFee *MinimumUsageFee `json:"minimumUsageFee,omitempty"`
	SolarBuyback    *SolarBuyback    `json:"solarBuyback"`

	// Indexed plans only
	VariableIndexType          string           `json:"variableIndexType,omitempty"`
	CurrentBillEnergyRateCents *decimal.Decimal `json:"currentBillEnergyRateCents,omitempty"`
}

// TimeWindow prices a recurring block of hours. EndHour < StartHour crosses
// midnight; StartHour == EndHour covers the whole day.
type TimeWindow struct {
	Label           string           `json:"label"`
	StartHour       float64          `json:"startHour"`
	EndHour         float64          `json:"endHour"`
	DaysOfWeek      []int            `json:"daysOfWeek"` // 0 = Sunday
	Months          []int            `json:"months,omitempty"`
	RateCentsPerKwh *decimal.Decimal `json:"rateCentsPerKwh"`
	IsFree          bool             `json:"isFree"`
}

// UsageTier is a kWh-banded rate. Recognized, never priced.
type UsageTier struct {
	MinKwh          float64         `json:"minKwh"`
	MaxKwh          *float64        `json:"maxKwh"`
	RateCentsPerKwh decimal.Decimal `json:"rateCentsPerKwh"`
}

// BillCredit is a flat credit applied once per cycle. A nil ThresholdKwh marks a
// behavioral credit that usage alone cannot earn.
type BillCredit struct {
	Label         string          `json:"label"`
	CreditDollars decimal.Decimal `json:"creditDollars"`
	ThresholdKwh  *float64        `json:"thresholdKwh"`
	MaxKwh        *float64        `json:"maxKwh,omitempty"`
	MonthsOfYear  []int           `json:"monthsOfYear,omitempty"`
}

// MinimumUsageFee is charged when cycle usage is strictly below ThresholdKwh.
type MinimumUsageFee struct {
	FeeDollars   decimal.Decimal `json:"feeDollars"`
	ThresholdKwh float64         `json:"thresholdKwh"`
}

// SolarBuyback describes export compensation.
type SolarBuyback struct {
	HasBuyback          bool             `json:"hasBuyback"`
	CreditCentsPerKwh   *decimal.Decimal `json:"creditCentsPerKwh"`
	MatchesImportRate   *bool            `json:"matchesImportRate"`
	MaxMonthlyExportKwh *float64         `json:"maxMonthlyExportKwh"`
}

// IsIndexed reports whether the plan follows a variable index.
func (m *RateModel) IsIndexed() bool {
	return m.PlanType == PlanIndexed || m.VariableIndexType != ""
}

// HasTiers reports whether usage tiers were declared.
func (m *RateModel) HasTiers() bool {
	return len(m.UsageTiers) > 0
}

// HasWindows reports whether a time-of-window schedule was declared.
func (m *RateModel) HasWindows() bool {
	return len(m.TimeWindows) > 0
}

// IsUsageBased reports whether the credit can be earned from usage.
func (c BillCredit) IsUsageBased() bool {
	return c.ThresholdKwh != nil
}

// IsWellFormed reports whether the credit can be priced: positive amount,
// non-negative threshold, and a max (if any) above the threshold.
func (c BillCredit) IsWellFormed() bool {
	if !c.CreditDollars.IsPositive() || c.ThresholdKwh == nil || *c.ThresholdKwh < 0 {
		return false
	}
	if c.MaxKwh != nil && *c.MaxKwh < *c.ThresholdKwh {
		return false
	}
	return validMonths(c.MonthsOfYear)
}

// AppliesTo reports whether the credit is earned at the given cycle usage and month.
func (c BillCredit) AppliesTo(usageKwh float64, month int) bool {
	if !c.IsWellFormed() {
		return false
	}
	if usageKwh < *c.ThresholdKwh {
		return false
	}
	if c.MaxKwh != nil && usageKwh > *c.MaxKwh {
		return false
	}
	return len(c.MonthsOfYear) == 0 || containsInt(c.MonthsOfYear, month)
}

// IsWellFormed reports whether the fee is positive with a positive threshold.
func (f MinimumUsageFee) IsWellFormed() bool {
	return f.FeeDollars.IsPositive() && f.ThresholdKwh > 0
}

// IsPriced reports whether exports earn a determinable credit.
func (s SolarBuyback) IsPriced() bool {
	if !s.HasBuyback {
		return false
	}
	if s.MatchesImportRate != nil && *s.MatchesImportRate {
		return true
	}
	return s.CreditCentsPerKwh != nil && !s.CreditCentsPerKwh.IsNegative()
}

func validMonths(months []int) bool {
	for _, m := range months {
		if m < 1 || m > 12 {
			return false
		}
	}
	return true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
