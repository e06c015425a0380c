package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/diag"
)

func window(label string, start, end float64, rate *float64) ratemodel.TimeWindow {
	w := ratemodel.TimeWindow{Label: label, StartHour: start, EndHour: end, DaysOfWeek: ratemodel.AllDays}
	if rate == nil {
		w.IsFree = true
	} else {
		w.RateCentsPerKwh = ratemodel.Dec(*rate)
	}
	return w
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		model *ratemodel.RateModel
		valid bool
		codes []string
	}{
		{
			name:  "flat",
			model: &ratemodel.RateModel{PlanType: ratemodel.PlanFlat, DefaultRateCentsPerKwh: ratemodel.Dec(12.3)},
			valid: true,
			codes: []string{},
		},
		{
			name:  "missing default",
			model: &ratemodel.RateModel{PlanType: ratemodel.PlanFlat},
			codes: []string{diag.CodeMissingDefaultRate},
		},
		{
			name:  "negative default",
			model: &ratemodel.RateModel{DefaultRateCentsPerKwh: ratemodel.Dec(-1)},
			codes: []string{diag.CodeNegativeDefaultRate},
		},
		{
			name: "negative base charge warns only",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh:  ratemodel.Dec(10),
				BaseChargeCentsPerMonth: ratemodel.Dec(-495),
			},
			valid: true,
			codes: []string{diag.CodeInvalidBaseCharge},
		},
		{
			name: "tiers fail closed",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				UsageTiers: []ratemodel.UsageTier{
					{MinKwh: 0, MaxKwh: ratemodel.Float(1000), RateCentsPerKwh: *ratemodel.Dec(10)},
					{MinKwh: 1000, RateCentsPerKwh: *ratemodel.Dec(12)},
				},
			},
			codes: []string{diag.CodeUsageTiersManualReview},
		},
		{
			name: "window without rate",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				TimeWindows: []ratemodel.TimeWindow{
					{Label: "peak", StartHour: 14, EndHour: 20, DaysOfWeek: ratemodel.AllDays},
				},
			},
			codes: []string{diag.CodeMissingWindowRate},
		},
		{
			name: "windows cover all time without default",
			model: &ratemodel.RateModel{
				TimeWindows: []ratemodel.TimeWindow{
					window("day", 7, 21, ratemodel.Float(18)),
					window("night", 21, 7, nil),
				},
			},
			valid: true,
			codes: []string{},
		},
		{
			name: "incomplete coverage without default",
			model: &ratemodel.RateModel{
				TimeWindows: []ratemodel.TimeWindow{window("night", 21, 7, nil)},
			},
			codes: []string{diag.CodeIncompleteCoverage},
		},
		{
			name: "overlapping windows",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				TimeWindows: []ratemodel.TimeWindow{
					window("evening", 18, 23, ratemodel.Float(20)),
					window("night", 22, 6, nil),
				},
			},
			codes: []string{diag.CodeOverlappingWindows},
		},
		{
			name: "disjoint days do not overlap",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				TimeWindows: []ratemodel.TimeWindow{
					{Label: "weekday", StartHour: 0, EndHour: 0, DaysOfWeek: []int{1, 2, 3, 4, 5}, RateCentsPerKwh: ratemodel.Dec(12)},
					{Label: "weekend", StartHour: 0, EndHour: 0, DaysOfWeek: []int{0, 6}, IsFree: true},
				},
			},
			valid: true,
			codes: []string{},
		},
		{
			name: "bad hours and calendar",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				TimeWindows: []ratemodel.TimeWindow{
					{Label: "late", StartHour: 22, EndHour: 24, DaysOfWeek: ratemodel.AllDays, IsFree: true},
					{Label: "nodays", StartHour: 1, EndHour: 2, IsFree: true},
					{Label: "month13", StartHour: 3, EndHour: 4, DaysOfWeek: ratemodel.AllDays, Months: []int{13}, IsFree: true},
				},
			},
			codes: []string{diag.CodeInvalidWindowHours, diag.CodeInvalidWindowCalendar, diag.CodeInvalidWindowCalendar},
		},
		{
			name: "negative window rate",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				TimeWindows:            []ratemodel.TimeWindow{window("peak", 14, 20, ratemodel.Float(-3))},
			},
			codes: []string{diag.CodeNegativeWindowRate},
		},
		{
			name: "free window that also states a rate",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				TimeWindows: []ratemodel.TimeWindow{
					{Label: "nights", StartHour: 21, EndHour: 7, DaysOfWeek: ratemodel.AllDays, IsFree: true, RateCentsPerKwh: ratemodel.Dec(5)},
				},
			},
			valid: true,
			codes: []string{diag.CodeAmbiguousWindowRate},
		},
		{
			name: "adjustment warnings",
			model: &ratemodel.RateModel{
				DefaultRateCentsPerKwh: ratemodel.Dec(10),
				BillCredits: []ratemodel.BillCredit{
					{Label: "zero", CreditDollars: *ratemodel.Dec(0), ThresholdKwh: ratemodel.Float(1000)},
					{Label: "autopay", CreditDollars: *ratemodel.Dec(5)},
				},
				MinimumUsageFee: &ratemodel.MinimumUsageFee{FeeDollars: *ratemodel.Dec(9.95)},
				SolarBuyback:    &ratemodel.SolarBuyback{HasBuyback: true},
			},
			valid: true,
			codes: []string{diag.CodeInvalidBillCredit, diag.CodeInvalidMinimumUsageFee, diag.CodeSolarBuybackUnpriced},
		},
		{
			name: "indexed is informational",
			model: &ratemodel.RateModel{
				PlanType:               ratemodel.PlanIndexed,
				DefaultRateCentsPerKwh: ratemodel.Dec(11),
				VariableIndexType:      "ERCOT_HUB",
			},
			valid: true,
			codes: []string{diag.CodeIndexedApproximateOnly},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.model)
			assert.Equal(t, tt.valid, v.IsValid)
			assert.Equal(t, !tt.valid, v.RequiresManualReview)
			assert.Equal(t, tt.codes, v.Issues.Codes())
		})
	}
}

func TestValidate_TiersAlwaysRequireReview(t *testing.T) {
	tiers := []ratemodel.UsageTier{{MinKwh: 0, RateCentsPerKwh: *ratemodel.Dec(9)}}
	models := []*ratemodel.RateModel{
		{UsageTiers: tiers},
		{DefaultRateCentsPerKwh: ratemodel.Dec(12), UsageTiers: tiers},
		{
			TimeWindows: []ratemodel.TimeWindow{window("all", 0, 0, ratemodel.Float(12))},
			UsageTiers:  tiers,
		},
	}
	for _, m := range models {
		v := Validate(m)
		assert.True(t, v.RequiresManualReview)
		assert.True(t, v.Issues.Has(diag.CodeUsageTiersManualReview))
	}
}

func TestValidate_NilModel(t *testing.T) {
	v := Validate(nil)
	assert.False(t, v.IsValid)
	assert.True(t, v.RequiresManualReview)
}

func TestCoversAllTime(t *testing.T) {
	assert.True(t, CoversAllTime([]ratemodel.TimeWindow{window("a", 0, 0, nil)}))
	assert.True(t, CoversAllTime([]ratemodel.TimeWindow{
		window("a", 0, 12.5, nil),
		window("b", 12.5, 0, ratemodel.Float(9)),
	}))
	assert.False(t, CoversAllTime([]ratemodel.TimeWindow{
		window("a", 0, 12, nil),
		window("b", 12.5, 0, ratemodel.Float(9)),
	}))

	summer := window("summer", 0, 0, nil)
	summer.Months = []int{6, 7, 8}
	assert.False(t, CoversAllTime([]ratemodel.TimeWindow{summer}))
}
