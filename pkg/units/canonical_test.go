package units

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestChargeDollars(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		kwh  float64
		want string
	}{
		{"simple", 14, 2, "0.28"},
		{"zero kwh", 14, 0, "0"},
		{"free", 0, 5, "0"},
		{"fractional", 12.5, 1000, "125"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChargeDollars(decimal.NewFromFloat(tt.rate), tt.kwh).String())
		})
	}
}

func TestConversions(t *testing.T) {
	assert.Equal(t, "4.95", CentsToDollars(decimal.NewFromInt(495)).String())
	assert.Equal(t, "995", DollarsToCents(decimal.NewFromFloat(9.95)).String())
}

func TestIntervalsPerDay(t *testing.T) {
	assert.Equal(t, 24, IntervalsPerDay(time.Hour))
	assert.Equal(t, 96, IntervalsPerDay(15*time.Minute))
	assert.Equal(t, 0, IntervalsPerDay(0))
}
