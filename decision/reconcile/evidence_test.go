package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEvidence(t *testing.T) {
	text := `Average Monthly Use: 500 kWh 1000 kWh 2000 kWh
Energy Charge: 12.5¢ per kWh.
Base Charge: $4.95 per billing cycle.
A Minimum Usage Fee of $9.95 applies when usage is less than 1,000 kWh.
Usage Credit: a bill credit of $100 applies when usage is 1,000 kWh or more but no more than 2,000 kWh.
Autopay credit of $5 per month.`

	ev := ExtractEvidence(text)

	require.NotNil(t, ev.BaseChargeCents)
	assert.Equal(t, "495", ev.BaseChargeCents.String())

	require.NotNil(t, ev.MinimumUsageFee)
	assert.Equal(t, "9.95", ev.MinimumUsageFee.FeeDollars.String())
	assert.Equal(t, 1000.0, ev.MinimumUsageFee.ThresholdKwh)

	require.NotNil(t, ev.BillCredit)
	assert.Equal(t, "100", ev.BillCredit.CreditDollars.String())
	assert.Equal(t, 1000.0, *ev.BillCredit.ThresholdKwh)
	require.NotNil(t, ev.BillCredit.MaxKwh)
	assert.Equal(t, 2000.0, *ev.BillCredit.MaxKwh)
}

func TestExtractEvidence_Empty(t *testing.T) {
	tests := []string{
		"",
		"Energy Charge: 12.5¢ per kWh.",
		"Autopay credit of $5 per month.",
		"Base charge applies.",
	}
	for _, text := range tests {
		assert.True(t, ExtractEvidence(text).IsEmpty(), text)
	}
}

func TestExtractEvidence_BaseChargeInCents(t *testing.T) {
	ev := ExtractEvidence("Monthly Service Fee: 495 cents")
	require.NotNil(t, ev.BaseChargeCents)
	assert.Equal(t, "495", ev.BaseChargeCents.String())
}

func TestExtractEvidence_CreditBounds(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		threshold float64
		max       *float64
	}{
		{name: "at least", text: "A $50 bill credit applies when usage is at least 1,000 kWh.", threshold: 1000},
		{name: "or more", text: "Usage credit of $50 for 1000 kWh or more.", threshold: 1000},
		{name: "no less than", text: "A $50 bill credit applies for usage no less than 800 kWh.", threshold: 800},
		{name: "more than", text: "A $50 bill credit applies when usage is more than 1,000 kWh.", threshold: 1001},
		{name: "exceeds", text: "Bill credit: $50 when usage exceeds 1000 kWh.", threshold: 1001},
		{name: "over", text: "Usage credit of $25 for usage over 500 kWh.", threshold: 501},
		{
			name:      "inclusive band",
			text:      "A $100 bill credit applies when usage is at least 1,000 kWh and up to 2,000 kWh.",
			threshold: 1000,
			max:       floatPtr(2000),
		},
		{
			name:      "strict band",
			text:      "A $100 bill credit applies when usage is more than 1,000 kWh but less than 2,000 kWh.",
			threshold: 1001,
			max:       floatPtr(1999),
		},
		{
			name:      "upper bound alone is not a threshold",
			text:      "A $100 bill credit applies for 1,000 kWh or more but no more than 2,000 kWh.",
			threshold: 1000,
			max:       floatPtr(2000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ExtractEvidence(tt.text)
			require.NotNil(t, ev.BillCredit)
			require.NotNil(t, ev.BillCredit.ThresholdKwh)
			assert.Equal(t, tt.threshold, *ev.BillCredit.ThresholdKwh)
			assert.Equal(t, tt.max, ev.BillCredit.MaxKwh)
		})
	}
}

func TestExtractEvidence_NegatedLowerBoundOnly(t *testing.T) {
	ev := ExtractEvidence("A $10 bill credit applies for usage of no more than 500 kWh.")
	assert.Nil(t, ev.BillCredit)
}

func floatPtr(v float64) *float64 { return &v }
