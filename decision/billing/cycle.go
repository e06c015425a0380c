// Package billing computes a billing cycle from an interval series.
// Per-interval energy pricing is delegated to decision/pricer; this package
// layers the cycle-level rules on top: base charge, minimum-usage fee,
// bill credits and the monthly export cap.
package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"efl-cost/decision/pricer"
	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/units"
)

// Interval is one metered consumption interval in local time.
type Interval struct {
	Start     time.Time `json:"start"`
	ImportKwh float64   `json:"importKwh"`
	ExportKwh float64   `json:"exportKwh"`
}

// PeriodUsage aggregates energy priced under one period label.
type PeriodUsage struct {
	Label         string          `json:"label"`
	Kwh           float64         `json:"kwh"`
	ChargeDollars decimal.Decimal `json:"chargeDollars"`
}

// AppliedCredit records a bill credit earned in the cycle.
type AppliedCredit struct {
	Label         string          `json:"label"`
	CreditDollars decimal.Decimal `json:"creditDollars"`
}

// Bill is the priced billing cycle. All amounts are dollars.
type Bill struct {
	ImportKwh float64 `json:"importKwh"`
	ExportKwh float64 `json:"exportKwh"`

	EnergyChargeDollars    decimal.Decimal `json:"energyChargeDollars"`
	BaseChargeDollars      decimal.Decimal `json:"baseChargeDollars"`
	MinimumUsageFeeDollars decimal.Decimal `json:"minimumUsageFeeDollars"`
	BillCreditDollars      decimal.Decimal `json:"billCreditDollars"`
	ExportCreditDollars    decimal.Decimal `json:"exportCreditDollars"`
	TotalDollars           decimal.Decimal `json:"totalDollars"`

	Periods        []PeriodUsage   `json:"periods"`
	AppliedCredits []AppliedCredit `json:"appliedCredits"`
	// ExportKwhCredited is exports after the monthly cap.
	ExportKwhCredited float64 `json:"exportKwhCredited"`
}

// AverageCentsPerKwh returns total cost over imported kWh, in cents.
func (b Bill) AverageCentsPerKwh() decimal.Decimal {
	if b.ImportKwh <= 0 {
		return decimal.Zero
	}
	return units.DollarsToCents(b.TotalDollars).Div(decimal.NewFromFloat(b.ImportKwh))
}

// Compute prices one billing cycle. The cycle month used for seasonal credits
// is the month of the first interval.
func Compute(m *ratemodel.RateModel, intervals []Interval) Bill {
	bill := Bill{
		Periods:        make([]PeriodUsage, 0),
		AppliedCredits: make([]AppliedCredit, 0),
	}
	if m == nil {
		return bill
	}

	periods := make(map[string]*PeriodUsage)
	order := make([]string, 0)

	// Export credits accrue interval by interval until the cap is reached.
	exportCap := -1.0
	if m.SolarBuyback != nil && m.SolarBuyback.MaxMonthlyExportKwh != nil {
		exportCap = *m.SolarBuyback.MaxMonthlyExportKwh
	}

	for _, iv := range intervals {
		exportKwh := iv.ExportKwh
		if exportCap >= 0 {
			remaining := exportCap - bill.ExportKwhCredited
			if remaining < 0 {
				remaining = 0
			}
			if exportKwh > remaining {
				exportKwh = remaining
			}
		}

		c := pricer.Price(m, iv.Start, iv.ImportKwh, exportKwh)
		bill.ImportKwh += iv.ImportKwh
		bill.ExportKwh += iv.ExportKwh
		bill.ExportKwhCredited += exportKwh
		bill.EnergyChargeDollars = bill.EnergyChargeDollars.Add(c.ImportChargeDollars)
		bill.ExportCreditDollars = bill.ExportCreditDollars.Add(c.ExportCreditDollars)

		p, ok := periods[c.PeriodLabel]
		if !ok {
			p = &PeriodUsage{Label: c.PeriodLabel}
			periods[c.PeriodLabel] = p
			order = append(order, c.PeriodLabel)
		}
		p.Kwh += iv.ImportKwh
		p.ChargeDollars = p.ChargeDollars.Add(c.ImportChargeDollars)
	}

	sort.Strings(order)
	for _, label := range order {
		bill.Periods = append(bill.Periods, *periods[label])
	}

	if m.BaseChargeCentsPerMonth != nil {
		bill.BaseChargeDollars = units.CentsToDollars(*m.BaseChargeCentsPerMonth)
	}

	if f := m.MinimumUsageFee; f != nil && f.IsWellFormed() && bill.ImportKwh < f.ThresholdKwh {
		bill.MinimumUsageFeeDollars = f.FeeDollars
	}

	month := 0
	if len(intervals) > 0 {
		month = int(intervals[0].Start.Month())
	}
	for _, credit := range m.BillCredits {
		if credit.AppliesTo(bill.ImportKwh, month) {
			bill.BillCreditDollars = bill.BillCreditDollars.Add(credit.CreditDollars)
			bill.AppliedCredits = append(bill.AppliedCredits, AppliedCredit{
				Label:         credit.Label,
				CreditDollars: credit.CreditDollars,
			})
		}
	}

	bill.TotalDollars = bill.EnergyChargeDollars.
		Add(bill.BaseChargeDollars).
		Add(bill.MinimumUsageFeeDollars).
		Sub(bill.BillCreditDollars).
		Sub(bill.ExportCreditDollars)
	return bill
}
