package reconcile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/units"
)

// Evidence is what the disclosure text states about cycle-level charges.
// Text corroborates a repair; it is never re-parsed into a full model.
type Evidence struct {
	BaseChargeCents *decimal.Decimal           `json:"baseChargeCents,omitempty"`
	MinimumUsageFee *ratemodel.MinimumUsageFee `json:"minimumUsageFee,omitempty"`
	BillCredit      *ratemodel.BillCredit      `json:"billCredit,omitempty"`
}

var (
	sentenceSplit = regexp.MustCompile(`[.;](?:\s+|$)|\n+`)

	baseChargeRe = regexp.MustCompile(`(?i)\b(?:base|monthly|customer|service)\s+(?:charge|fee)\b`)
	minUsageRe   = regexp.MustCompile(`(?i)\bminimum\s+usage\s+(?:fee|charge)\b`)
	billCreditRe = regexp.MustCompile(`(?i)\b(?:usage\s+|bill\s+|energy\s+)?credit\b`)
	dollarsRe    = regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)`)
	centsRe      = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:¢|cents?\b)`)
	belowKwhRe   = regexp.MustCompile(`(?i)(?:less\s+than|below|under|fewer\s+than)\s+(\d[\d,]*(?:\.\d+)?)\s*kwh`)
	// Lower bounds. Group 1 catches a negated comparison ("no more than"),
	// group 2 the comparison, group 3 or 4 the quantity.
	lowerKwhRe   = regexp.MustCompile(`(?i)\b(no\s+)?(at\s+least|greater\s+than\s+or\s+equal\s+to|no\s+less\s+than|more\s+than|greater\s+than|exceeds?|exceeding|over)\s+(\d[\d,]*(?:\.\d+)?)\s*kwh|(\d[\d,]*(?:\.\d+)?)\s*kwh\s+or\s+more`)
	upperKwhRe   = regexp.MustCompile(`(?i)(?:and|but)\s+(less\s+than\s+or\s+equal\s+to|no\s+more\s+than|up\s+to|not\s+exceeding|less\s+than|under|below)\s+(\d[\d,]*(?:\.\d+)?)\s*kwh`)
	strictKwhRe  = regexp.MustCompile(`(?i)^(?:more\s+than|greater\s+than|exceeds?|exceeding|over|less\s+than|under|below)$`)
	behavioralRe = regexp.MustCompile(`(?i)\b(?:autopay|auto\s+pay|paperless|referral|sign[- ]?up|enrollment)\b`)
)

// ExtractEvidence scans the disclosure text sentence by sentence. The first
// sentence stating each charge wins.
func ExtractEvidence(text string) Evidence {
	var ev Evidence
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		switch {
		case ev.MinimumUsageFee == nil && minUsageRe.MatchString(s):
			ev.MinimumUsageFee = minimumUsageFee(s)
		case ev.BaseChargeCents == nil && baseChargeRe.MatchString(s):
			ev.BaseChargeCents = baseCharge(s)
		case ev.BillCredit == nil && billCreditRe.MatchString(s) && !behavioralRe.MatchString(s):
			ev.BillCredit = billCredit(s)
		}
	}
	return ev
}

// IsEmpty reports whether the text stated nothing usable.
func (e Evidence) IsEmpty() bool {
	return e.BaseChargeCents == nil && e.MinimumUsageFee == nil && e.BillCredit == nil
}

func baseCharge(s string) *decimal.Decimal {
	if d, ok := firstDollars(s); ok {
		c := units.DollarsToCents(d)
		return &c
	}
	if m := centsRe.FindStringSubmatch(s); m != nil && !strings.Contains(strings.ToLower(s), "kwh") {
		if c, err := decimal.NewFromString(m[1]); err == nil {
			return &c
		}
	}
	return nil
}

func minimumUsageFee(s string) *ratemodel.MinimumUsageFee {
	fee, ok := firstDollars(s)
	if !ok {
		return nil
	}
	m := belowKwhRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	threshold, ok := parseKwh(m[1])
	if !ok {
		return nil
	}
	return &ratemodel.MinimumUsageFee{FeeDollars: fee, ThresholdKwh: threshold}
}

// billCredit reads the qualifying band of a usage credit. Bounds are whole
// kWh, so a strict bound moves one kWh inward.
func billCredit(s string) *ratemodel.BillCredit {
	amount, ok := firstDollars(s)
	if !ok {
		return nil
	}
	threshold, ok := lowerBound(s)
	if !ok {
		return nil
	}
	credit := &ratemodel.BillCredit{
		Label:         "text credit",
		CreditDollars: amount,
		ThresholdKwh:  &threshold,
	}
	if up := upperKwhRe.FindStringSubmatch(s); up != nil {
		if max, ok := parseKwh(up[2]); ok {
			if strictKwhRe.MatchString(up[1]) {
				max--
			}
			if max >= threshold {
				credit.MaxKwh = &max
			}
		}
	}
	return credit
}

func lowerBound(s string) (float64, bool) {
	for _, m := range lowerKwhRe.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			continue
		}
		if m[4] != "" {
			return parseKwh(m[4])
		}
		v, ok := parseKwh(m[3])
		if !ok {
			return 0, false
		}
		if strictKwhRe.MatchString(m[2]) {
			v++
		}
		return v, true
	}
	return 0, false
}

func firstDollars(s string) (decimal.Decimal, bool) {
	m := dollarsRe.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseKwh(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
