package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efl-cost/decision/estimation"
	"efl-cost/decision/pricer"
	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/diag"
)

func TestProject_FlatRoundTrip(t *testing.T) {
	m := &ratemodel.RateModel{
		PlanType:               ratemodel.PlanFlat,
		DefaultRateCentsPerKwh: ratemodel.Dec(12.3),
	}

	rs, issues, err := Project(m, Options{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, TypeFixed, rs.Type)
	require.NotNil(t, rs.EnergyRateCents)
	assert.Equal(t, 12.3, *rs.EnergyRateCents)
	assert.False(t, rs.BillCredits.HasBillCredit)
	assert.NotNil(t, rs.BillCredits.Rules)

	back, err := ToModel(rs)
	require.NoError(t, err)
	for _, usage := range []float64{ratemodel.Anchor500, ratemodel.Anchor1000, ratemodel.Anchor2000} {
		want := estimation.ModeledAverageCents(m, usage, nil)
		got := estimation.ModeledAverageCents(back, usage, nil)
		assert.True(t, want.Equal(got), "usage %v: %s != %s", usage, want, got)
	}
	c := pricer.Price(back, estimation.ReferenceStart, 1, 0)
	assert.Equal(t, "12.3", c.ImportRateCentsPerKwh.String())
}

func TestProject_RefusesInvalidModel(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(10),
		UsageTiers:             []ratemodel.UsageTier{{MinKwh: 0, RateCentsPerKwh: *ratemodel.Dec(10)}},
	}

	_, issues, err := Project(m, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotValid))
	assert.True(t, issues.Has(diag.CodeUsageTiersManualReview))
}

func TestProject_TimeOfWindow(t *testing.T) {
	m := &ratemodel.RateModel{
		PlanType:                ratemodel.PlanTimeOfWindow,
		DefaultRateCentsPerKwh:  ratemodel.Dec(14),
		BaseChargeCentsPerMonth: ratemodel.Dec(495),
		TimeWindows: []ratemodel.TimeWindow{
			{Label: "free nights", StartHour: 21, EndHour: 7, DaysOfWeek: ratemodel.AllDays, IsFree: true},
			{Label: "weekday peak", StartHour: 13.5, EndHour: 19.5, DaysOfWeek: []int{5, 1, 2, 3, 4}, Months: []int{6, 7, 8}, RateCentsPerKwh: ratemodel.Dec(22)},
		},
	}

	rs, issues, err := Project(m, Options{})
	require.NoError(t, err)
	assert.Equal(t, TypeTimeOfWindow, rs.Type)
	require.Len(t, rs.Tiers, 2)

	assert.Equal(t, Tier{
		Label: "free nights", PriceCents: 0, StartTime: "21:00", EndTime: "07:00",
		DaysOfWeek: Days{0, 1, 2, 3, 4, 5, 6},
	}, rs.Tiers[0])
	assert.Equal(t, "13:00", rs.Tiers[1].StartTime)
	assert.Equal(t, "19:00", rs.Tiers[1].EndTime)
	assert.Equal(t, []int{6, 7, 8}, rs.Tiers[1].MonthsOfYear)
	assert.Equal(t, 495.0, *rs.BaseMonthlyFeeCents)

	require.Len(t, issues, 2)
	for _, is := range issues {
		assert.Equal(t, diag.CodeWindowBoundaryTruncated, is.Code)
		assert.Equal(t, diag.SeverityWarning, is.Severity)
	}

	exact, issues, err := Project(m, Options{MinuteResolution: true})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, "13:30", exact.Tiers[1].StartTime)
	assert.Equal(t, "19:30", exact.Tiers[1].EndTime)

	b, err := json.Marshal(rs.Tiers)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"daysOfWeek":"ALL"`)
	assert.Contains(t, string(b), `"daysOfWeek":["MON","TUE","WED","THU","FRI"]`)
}

func TestProject_Credits(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(10),
		BillCredits: []ratemodel.BillCredit{
			{Label: "usage", CreditDollars: *ratemodel.Dec(50), ThresholdKwh: ratemodel.Float(1000), MaxKwh: ratemodel.Float(2000)},
			{Label: "zero", CreditDollars: *ratemodel.Dec(0), ThresholdKwh: ratemodel.Float(500)},
			{Label: "negative threshold", CreditDollars: *ratemodel.Dec(10), ThresholdKwh: ratemodel.Float(-1)},
			{Label: "autopay", CreditDollars: *ratemodel.Dec(5)},
			{Label: "bad months", CreditDollars: *ratemodel.Dec(25), ThresholdKwh: ratemodel.Float(800), MonthsOfYear: []int{13}},
			{Label: "inverted band", CreditDollars: *ratemodel.Dec(25), ThresholdKwh: ratemodel.Float(1500), MaxKwh: ratemodel.Float(800)},
		},
	}

	rs, _, err := Project(m, Options{})
	require.NoError(t, err)
	assert.True(t, rs.BillCredits.HasBillCredit)
	require.Len(t, rs.BillCredits.Rules, 1)
	rule := rs.BillCredits.Rules[0]
	assert.Equal(t, "usage", rule.Label)
	assert.Equal(t, 5000.0, rule.CreditAmountCents)
	assert.Equal(t, 1000.0, rule.MinUsageKWh)
	assert.Equal(t, 2000.0, *rule.MaxUsageKWh)

	b, err := json.Marshal(RateStructure{Type: TypeFixed, BillCredits: projectCredits(nil)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"billCredits":{"hasBillCredit":false,"rules":[]}`)
}

func TestProject_OnlyMalformedCredits(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(12),
		BillCredits: []ratemodel.BillCredit{
			{Label: "bad months", CreditDollars: *ratemodel.Dec(25), ThresholdKwh: ratemodel.Float(800), MonthsOfYear: []int{13}},
			{Label: "inverted band", CreditDollars: *ratemodel.Dec(25), ThresholdKwh: ratemodel.Float(1500), MaxKwh: ratemodel.Float(800)},
		},
	}

	rs, _, err := Project(m, Options{})
	require.NoError(t, err)
	assert.False(t, rs.BillCredits.HasBillCredit)
	assert.Empty(t, rs.BillCredits.Rules)
}

func TestProject_MinuteResolutionNearMidnight(t *testing.T) {
	m := &ratemodel.RateModel{
		DefaultRateCentsPerKwh: ratemodel.Dec(12),
		TimeWindows: []ratemodel.TimeWindow{
			{Label: "evening", StartHour: 18, EndHour: 23.9999, DaysOfWeek: ratemodel.AllDays, RateCentsPerKwh: ratemodel.Dec(20)},
		},
	}

	rs, _, err := Project(m, Options{MinuteResolution: true})
	require.NoError(t, err)
	require.Len(t, rs.Tiers, 1)
	assert.Equal(t, "23:59", rs.Tiers[0].EndTime)

	back, err := ToModel(rs)
	require.NoError(t, err)
	require.Len(t, back.TimeWindows, 1)
	assert.InDelta(t, 23+59.0/60, back.TimeWindows[0].EndHour, 1e-9)
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		hour    float64
		minutes bool
		want    string
	}{
		{13.5, false, "13:00"},
		{13.5, true, "13:30"},
		{7.7, true, "07:42"},
		{23.9999, true, "23:59"},
		{23.9999, false, "23:00"},
		{0, true, "00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatClock(tt.hour, tt.minutes), "hour %v minutes %v", tt.hour, tt.minutes)
	}
}

func TestToModel_TimeOfWindow(t *testing.T) {
	raw := `{
		"type": "TIME_OF_WINDOW",
		"energyRateCents": 15,
		"tiers": [
			{"label": "nights", "priceCents": 0, "startTime": "21:00", "endTime": "07:00", "daysOfWeek": "ALL"},
			{"label": "weekend", "priceCents": 9.5, "startTime": "07:30", "endTime": "21:00", "daysOfWeek": ["SAT", "SUN"]}
		],
		"billCredits": {"hasBillCredit": false, "rules": []}
	}`
	var rs RateStructure
	require.NoError(t, json.Unmarshal([]byte(raw), &rs))

	m, err := ToModel(rs)
	require.NoError(t, err)
	require.Len(t, m.TimeWindows, 2)
	assert.True(t, m.TimeWindows[0].IsFree)
	assert.Equal(t, ratemodel.AllDays, m.TimeWindows[0].DaysOfWeek)
	assert.Equal(t, 7.5, m.TimeWindows[1].StartHour)
	assert.Equal(t, []int{6, 0}, m.TimeWindows[1].DaysOfWeek)
	assert.Equal(t, "9.5", m.TimeWindows[1].RateCentsPerKwh.String())
	assert.Equal(t, "15", m.DefaultRateCentsPerKwh.String())

	_, err = ToModel(RateStructure{Type: "TIERED"})
	assert.Error(t, err)
}

func TestDays_UnmarshalRejectsUnknown(t *testing.T) {
	var d Days
	assert.Error(t, json.Unmarshal([]byte(`"WEEKDAYS"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`["MON","XYZ"]`), &d))
}
