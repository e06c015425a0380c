// Package computability decides what usage history a caller must supply to
// price a real bill under a rate model. Branches are evaluated in a fixed
// order and the first match wins.
package computability

import (
	"fmt"
	"sort"
	"strings"

	"efl-cost/decision/ratemodel"
	"efl-cost/decision/validation"
	"efl-cost/pkg/diag"
)

// Status is the computability verdict.
type Status string

const (
	StatusComputable    Status = "COMPUTABLE"
	StatusNotComputable Status = "NOT_COMPUTABLE"
	StatusUnknown       Status = "UNKNOWN"
)

// Granularity is the usage-history shape required.
type Granularity string

const (
	GranularityNone         Granularity = "NONE"
	GranularityMonthlyTotal Granularity = "MONTHLY_TOTAL"
	GranularityInterval     Granularity = "INTERVAL_SERIES"
)

// Reason codes.
const (
	ReasonMissingModel             = "MISSING_MODEL"
	ReasonFixedRateOK              = "FIXED_RATE_OK"
	ReasonFixedRateWithRulesOK     = "FIXED_RATE_WITH_RULES_OK"
	ReasonBillCreditMalformed      = "BILL_CREDIT_MALFORMED"
	ReasonMinimumUsageFeeMalformed = "MINIMUM_USAGE_FEE_MALFORMED"
	ReasonSolarBuybackMalformed    = "SOLAR_BUYBACK_MALFORMED"
	ReasonTouOK                    = "TOU_OK"
	ReasonTouPlusCreditsOK         = "TOU_PLUS_CREDITS_OK"
	ReasonTouWindowsInvalid        = "TOU_WINDOWS_INVALID"
	ReasonUsageTiersUnsupported    = "USAGE_TIERS_UNSUPPORTED"
	ReasonIndexedApproximateOK     = "INDEXED_APPROXIMATE_OK"
	ReasonIndexedMissingAnchors    = "INDEXED_MISSING_ANCHORS"
	ReasonUnsupportedRateStructure = "UNSUPPORTED_RATE_STRUCTURE"
)

// EstimateModeApproximateAnchor allows anchor-interpolated estimates only.
const EstimateModeApproximateAnchor = "APPROXIMATE_ANCHOR"

// Usage bucket keys.
const (
	BucketMonthlyTotal  = "kwh.m.all.total"
	BucketMonthlyExport = "kwh.m.all.export"
	BucketInterval15m   = "kwh.interval.15m.import"
)

// Features lists the pricing constructs the verdict relies on.
type Features struct {
	FlatRate             bool     `json:"flatRate"`
	TimeOfWindow         bool     `json:"timeOfWindow"`
	BaseCharge           bool     `json:"baseCharge"`
	BillCredits          bool     `json:"billCredits"`
	MinimumUsageFee      bool     `json:"minimumUsageFee"`
	SolarBuyback         bool     `json:"solarBuyback"`
	Indexed              bool     `json:"indexed"`
	UsageTiers           bool     `json:"usageTiers"`
	EstimateModesAllowed []string `json:"estimateModesAllowed,omitempty"`
}

// Verdict is the classification of one model.
type Verdict struct {
	Status                  Status      `json:"status"`
	ReasonCode              string      `json:"reasonCode"`
	Granularity             Granularity `json:"granularity"`
	RequiredUsageBucketKeys []string    `json:"requiredUsageBucketKeys"`
	SupportedFeatures       Features    `json:"supportedFeatures"`
	Detail                  string      `json:"detail,omitempty"`
}

// IsComputable reports whether a bill can be priced.
func (v Verdict) IsComputable() bool {
	return v.Status == StatusComputable
}

// Envelope is the wire summary for usage-history collaborators.
type Envelope struct {
	PlanCalcStatus     Status   `json:"planCalcStatus"`
	PlanCalcReasonCode string   `json:"planCalcReasonCode"`
	RequiredBucketKeys []string `json:"requiredBucketKeys"`
	SupportedFeatures  Features `json:"supportedFeatures"`
}

// Envelope builds the computability envelope.
func (v Verdict) Envelope() Envelope {
	return Envelope{
		PlanCalcStatus:     v.Status,
		PlanCalcReasonCode: v.ReasonCode,
		RequiredBucketKeys: append(make([]string, 0, len(v.RequiredUsageBucketKeys)), v.RequiredUsageBucketKeys...),
		SupportedFeatures:  v.SupportedFeatures,
	}
}

// Advise classifies m. Anchors matter only for indexed plans.
func Advise(m *ratemodel.RateModel, anchors ratemodel.Anchors) Verdict {
	if m == nil {
		return Verdict{
			Status:                  StatusUnknown,
			ReasonCode:              ReasonMissingModel,
			Granularity:             GranularityNone,
			RequiredUsageBucketKeys: []string{},
		}
	}

	features := featuresOf(m)
	switch {
	case isFlat(m):
		return flatVerdict(m, features)
	case m.HasWindows() && !m.HasTiers() && !m.IsIndexed():
		return touVerdict(m, features)
	case m.HasTiers():
		return notComputable(ReasonUsageTiersUnsupported, features,
			fmt.Sprintf("%d usage tier(s) are recognized but not priced", len(m.UsageTiers)))
	case m.IsIndexed():
		if anchors.Count() == 0 {
			return notComputable(ReasonIndexedMissingAnchors, features, "indexed plan without disclosed anchors")
		}
		features.EstimateModesAllowed = []string{EstimateModeApproximateAnchor}
		return Verdict{
			Status:                  StatusComputable,
			ReasonCode:              ReasonIndexedApproximateOK,
			Granularity:             GranularityMonthlyTotal,
			RequiredUsageBucketKeys: []string{BucketMonthlyTotal},
			SupportedFeatures:       features,
			Detail:                  "approximate only: interpolated from disclosed anchors",
		}
	default:
		return notComputable(ReasonUnsupportedRateStructure, features, "no resolvable energy rate")
	}
}

// isFlat reports a single resolvable flat rate.
func isFlat(m *ratemodel.RateModel) bool {
	return !m.HasWindows() && !m.HasTiers() && !m.IsIndexed() &&
		m.DefaultRateCentsPerKwh != nil && !m.DefaultRateCentsPerKwh.IsNegative()
}

func flatVerdict(m *ratemodel.RateModel, f Features) Verdict {
	if code, detail := adjustmentDefect(m); code != "" {
		return notComputable(code, f, detail)
	}
	keys := []string{BucketMonthlyTotal}
	if exportsCredited(m) {
		keys = append(keys, BucketMonthlyExport)
	}
	reason := ReasonFixedRateOK
	if hasRules(m) {
		reason = ReasonFixedRateWithRulesOK
	}
	return Verdict{
		Status:                  StatusComputable,
		ReasonCode:              reason,
		Granularity:             GranularityMonthlyTotal,
		RequiredUsageBucketKeys: keys,
		SupportedFeatures:       f,
	}
}

func touVerdict(m *ratemodel.RateModel, f Features) Verdict {
	v := validation.Validate(m)
	for _, is := range v.Issues {
		if is.Severity == diag.SeverityError {
			return notComputable(ReasonTouWindowsInvalid, f, is.Code+": "+is.Message)
		}
	}
	if code, detail := adjustmentDefect(m); code != "" {
		return notComputable(code, f, detail)
	}

	keys := windowBucketKeys(m)
	keys = append(keys, BucketMonthlyTotal)
	if exportsCredited(m) {
		keys = append(keys, BucketMonthlyExport)
	}
	keys = append(keys, BucketInterval15m)

	reason := ReasonTouOK
	if hasUsageCredits(m) {
		reason = ReasonTouPlusCreditsOK
	}
	return Verdict{
		Status:                  StatusComputable,
		ReasonCode:              reason,
		Granularity:             GranularityInterval,
		RequiredUsageBucketKeys: keys,
		SupportedFeatures:       f,
	}
}

func notComputable(code string, f Features, detail string) Verdict {
	return Verdict{
		Status:                  StatusNotComputable,
		ReasonCode:              code,
		Granularity:             GranularityNone,
		RequiredUsageBucketKeys: []string{},
		SupportedFeatures:       f,
		Detail:                  detail,
	}
}

// adjustmentDefect returns the reason code of the first malformed cycle-level
// rule. Behavioral credits are not usage rules and are ignored.
func adjustmentDefect(m *ratemodel.RateModel) (string, string) {
	for i, c := range m.BillCredits {
		if c.IsUsageBased() && !c.IsWellFormed() {
			return ReasonBillCreditMalformed, fmt.Sprintf("billCredits[%d] %q is malformed", i, c.Label)
		}
	}
	if f := m.MinimumUsageFee; f != nil && !f.IsWellFormed() {
		return ReasonMinimumUsageFeeMalformed, "minimum usage fee needs a positive fee and threshold"
	}
	if sb := m.SolarBuyback; sb != nil && sb.HasBuyback && !sb.IsPriced() {
		return ReasonSolarBuybackMalformed, "buyback declared without a credit rate"
	}
	return "", ""
}

func hasRules(m *ratemodel.RateModel) bool {
	return hasUsageCredits(m) || m.MinimumUsageFee != nil || exportsCredited(m)
}

func hasUsageCredits(m *ratemodel.RateModel) bool {
	for _, c := range m.BillCredits {
		if c.IsUsageBased() {
			return true
		}
	}
	return false
}

func exportsCredited(m *ratemodel.RateModel) bool {
	return m.SolarBuyback != nil && m.SolarBuyback.IsPriced()
}

func featuresOf(m *ratemodel.RateModel) Features {
	return Features{
		FlatRate:        !m.HasWindows() && m.DefaultRateCentsPerKwh != nil,
		TimeOfWindow:    m.HasWindows(),
		BaseCharge:      m.BaseChargeCentsPerMonth != nil && !m.BaseChargeCentsPerMonth.IsZero(),
		BillCredits:     hasUsageCredits(m),
		MinimumUsageFee: m.MinimumUsageFee != nil,
		SolarBuyback:    m.SolarBuyback != nil && m.SolarBuyback.HasBuyback,
		Indexed:         m.IsIndexed(),
		UsageTiers:      m.HasTiers(),
	}
}

// windowBucketKeys returns one monthly key per distinct window shape, e.g.
// "kwh.m.weekday.2100-0700". Keys are sorted and de-duplicated.
func windowBucketKeys(m *ratemodel.RateModel) []string {
	seen := make(map[string]bool)
	keys := make([]string, 0, len(m.TimeWindows))
	for _, w := range m.TimeWindows {
		k := fmt.Sprintf("kwh.m.%s.%s-%s", daysToken(w.DaysOfWeek), clockToken(w.StartHour), clockToken(w.EndHour))
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

var dayTokens = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func daysToken(days []int) string {
	set := make(map[int]bool, 7)
	for _, d := range days {
		if d >= 0 && d <= 6 {
			set[d] = true
		}
	}
	switch {
	case len(set) == 7:
		return "all"
	case len(set) == 5 && !set[0] && !set[6]:
		return "weekday"
	case len(set) == 2 && set[0] && set[6]:
		return "weekend"
	}
	parts := make([]string, 0, len(set))
	for d := 0; d <= 6; d++ {
		if set[d] {
			parts = append(parts, dayTokens[d])
		}
	}
	return strings.Join(parts, "_")
}

func clockToken(h float64) string {
	mins := int(h*60 + 0.5)
	return fmt.Sprintf("%02d%02d", mins/60, mins%60)
}
