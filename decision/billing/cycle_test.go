package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efl-cost/decision/ratemodel"
)

func hourly(start time.Time, hours int, importKwh, exportKwh float64) []Interval {
	out := make([]Interval, hours)
	for i := range out {
		out[i] = Interval{Start: start.Add(time.Duration(i) * time.Hour), ImportKwh: importKwh, ExportKwh: exportKwh}
	}
	return out
}

var jan1 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestCompute_FlatWithBaseCharge(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh:  ratemodel.Dec(10),
		BaseChargeCentsPerMonth: ratemodel.Dec(995),
	}

	bill := Compute(m, hourly(jan1, 100, 10, 0))

	assert.InDelta(t, 1000, bill.ImportKwh, 1e-9)
	assert.Equal(t, "100", bill.EnergyChargeDollars.String())
	assert.Equal(t, "9.95", bill.BaseChargeDollars.String())
	assert.Equal(t, "109.95", bill.TotalDollars.String())
	assert.Equal(t, "10.995", bill.AverageCentsPerKwh().String())
	require.Len(t, bill.Periods, 1)
	assert.Equal(t, "default", bill.Periods[0].Label)
}

func TestCompute_MinimumUsageFee(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(10),
		MinimumUsageFee:        &ratemodel.MinimumUsageFee{FeeDollars: *ratemodel.Dec(9.95), ThresholdKwh: 1000},
	}

	below := Compute(m, hourly(jan1, 100, 5, 0))
	assert.Equal(t, "9.95", below.MinimumUsageFeeDollars.String())

	at := Compute(m, hourly(jan1, 100, 10, 0))
	assert.True(t, at.MinimumUsageFeeDollars.IsZero(), "fee applies strictly below the threshold")
}

func TestCompute_BillCredits(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(10),
		BillCredits: []ratemodel.BillCredit{
			{Label: "usage credit", CreditDollars: *ratemodel.Dec(50), ThresholdKwh: ratemodel.Float(1000), MaxKwh: ratemodel.Float(2000)},
			{Label: "summer only", CreditDollars: *ratemodel.Dec(10), ThresholdKwh: ratemodel.Float(0), MonthsOfYear: []int{7}},
			{Label: "autopay", CreditDollars: *ratemodel.Dec(5)},
		},
	}

	tests := []struct {
		name    string
		kwh     float64
		credit  string
		applied []string
	}{
		{"below threshold", 500, "0", nil},
		{"inside band", 1500, "50", []string{"usage credit"}},
		{"above max", 2500, "0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill := Compute(m, hourly(jan1, 100, tt.kwh/100, 0))
			assert.Equal(t, tt.credit, bill.BillCreditDollars.String())
			labels := make([]string, 0)
			for _, c := range bill.AppliedCredits {
				labels = append(labels, c.Label)
			}
			if tt.applied == nil {
				assert.Empty(t, labels)
			} else {
				assert.Equal(t, tt.applied, labels)
			}
		})
	}

	july := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	bill := Compute(m, hourly(july, 100, 5, 0))
	assert.Equal(t, "10", bill.BillCreditDollars.String())
}

func TestCompute_ExportCap(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(10),
		SolarBuyback: &ratemodel.SolarBuyback{
			HasBuyback:          true,
			CreditCentsPerKwh:   ratemodel.Dec(5),
			MaxMonthlyExportKwh: ratemodel.Float(100),
		},
	}

	bill := Compute(m, hourly(jan1, 50, 0, 4))

	assert.InDelta(t, 200, bill.ExportKwh, 1e-9)
	assert.InDelta(t, 100, bill.ExportKwhCredited, 1e-9)
	assert.Equal(t, "5", bill.ExportCreditDollars.String())
	assert.Equal(t, "-5", bill.TotalDollars.String())
}

func TestCompute_PeriodsByLabel(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(20),
		TimeWindows: []ratemodel.TimeWindow{
			{Label: "nights", StartHour: 21, EndHour: 7, DaysOfWeek: ratemodel.AllDays, IsFree: true},
		},
	}

	bill := Compute(m, hourly(jan1, 24, 1, 0))

	require.Len(t, bill.Periods, 2)
	assert.Equal(t, "default", bill.Periods[0].Label)
	assert.InDelta(t, 14, bill.Periods[0].Kwh, 1e-9)
	assert.Equal(t, "nights", bill.Periods[1].Label)
	assert.InDelta(t, 10, bill.Periods[1].Kwh, 1e-9)
	assert.Equal(t, "2.8", bill.TotalDollars.String())
}

func TestCompute_NilModel(t *testing.T) {
	bill := Compute(nil, hourly(jan1, 3, 1, 0))
	assert.True(t, bill.TotalDollars.IsZero())
	assert.NotNil(t, bill.Periods)
}
