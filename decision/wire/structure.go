// Package wire projects a validated rate model into the simplified
// RateStructure contract consumed by downstream billing callers.
package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Structure types.
const (
	TypeFixed        = "FIXED"
	TypeTimeOfWindow = "TIME_OF_WINDOW"
)

// RateStructure is the wire contract. Amounts are plain JSON numbers.
type RateStructure struct {
	Type string `json:"type"`
	// EnergyRateCents is the FIXED rate, or the fallback rate for hours no
	// tier covers on a TIME_OF_WINDOW structure.
	EnergyRateCents     *float64    `json:"energyRateCents,omitempty"`
	Tiers               []Tier      `json:"tiers,omitempty"`
	BaseMonthlyFeeCents *float64    `json:"baseMonthlyFeeCents,omitempty"`
	BillCredits         BillCredits `json:"billCredits"`
}

// Tier is one priced time window.
type Tier struct {
	Label        string  `json:"label"`
	PriceCents   float64 `json:"priceCents"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	DaysOfWeek   Days    `json:"daysOfWeek"`
	MonthsOfYear []int   `json:"monthsOfYear,omitempty"`
}

// BillCredits is never null on the wire.
type BillCredits struct {
	HasBillCredit bool         `json:"hasBillCredit"`
	Rules         []CreditRule `json:"rules"`
}

// CreditRule is a usage-based bill credit.
type CreditRule struct {
	Label             string   `json:"label"`
	CreditAmountCents float64  `json:"creditAmountCents"`
	MinUsageKWh       float64  `json:"minUsageKWh"`
	MaxUsageKWh       *float64 `json:"maxUsageKWh,omitempty"`
	MonthsOfYear      []int    `json:"monthsOfYear,omitempty"`
}

var dayNames = [7]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// Days encodes as "ALL" when every weekday is selected, otherwise as an
// explicit list of day names.
type Days []int

// IsAll reports whether all seven weekdays are selected.
func (d Days) IsAll() bool {
	seen := make(map[int]bool, 7)
	for _, v := range d {
		if v >= 0 && v <= 6 {
			seen[v] = true
		}
	}
	return len(seen) == 7
}

func (d Days) MarshalJSON() ([]byte, error) {
	if d.IsAll() {
		return json.Marshal("ALL")
	}
	sorted := append([]int(nil), d...)
	sort.Ints(sorted)
	names := make([]string, 0, len(sorted))
	for _, v := range sorted {
		if v < 0 || v > 6 {
			return nil, fmt.Errorf("day of week out of range: %d", v)
		}
		names = append(names, dayNames[v])
	}
	return json.Marshal(names)
}

func (d *Days) UnmarshalJSON(b []byte) error {
	var all string
	if err := json.Unmarshal(b, &all); err == nil {
		if !strings.EqualFold(all, "ALL") {
			return fmt.Errorf("unknown daysOfWeek sentinel: %q", all)
		}
		*d = Days{0, 1, 2, 3, 4, 5, 6}
		return nil
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return fmt.Errorf("daysOfWeek: %w", err)
	}
	out := make(Days, 0, len(names))
	for _, n := range names {
		idx := -1
		for i, dn := range dayNames {
			if strings.EqualFold(n, dn) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("unknown day name: %q", n)
		}
		out = append(out, idx)
	}
	*d = out
	return nil
}
