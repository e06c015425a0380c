// Package diag provides severity-aware diagnostics attached to verdicts.
package diag

import (
	"fmt"
	"strings"
)

// Severity indicates issue impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the severity by name so verdicts read the same in JSON and logs.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "INFO":
		*s = SeverityInfo
	case "WARNING":
		*s = SeverityWarning
	case "ERROR":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity: %q", string(b))
	}
	return nil
}

// Issue is a structured diagnostic with a machine-readable code.
type Issue struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
}

func (i Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("[%s] %s: %s (field: %s)", i.Severity, i.Code, i.Message, i.Field)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
}

// Issue codes
const (
	CodeMissingWindowRate        = "MISSING_WINDOW_RATE"
	CodeAmbiguousWindowRate      = "AMBIGUOUS_WINDOW_RATE"
	CodeMissingDefaultRate       = "MISSING_DEFAULT_RATE"
	CodeNegativeDefaultRate      = "NEGATIVE_DEFAULT_RATE"
	CodeInvalidBaseCharge        = "INVALID_BASE_CHARGE"
	CodeUsageTiersManualReview   = "USAGE_TIERS_REQUIRE_MANUAL_REVIEW"
	CodeInvalidWindowHours       = "INVALID_WINDOW_HOURS"
	CodeInvalidWindowCalendar    = "INVALID_WINDOW_CALENDAR"
	CodeNegativeWindowRate       = "NEGATIVE_WINDOW_RATE"
	CodeOverlappingWindows       = "OVERLAPPING_WINDOWS"
	CodeIncompleteCoverage       = "INCOMPLETE_WINDOW_COVERAGE"
	CodeInvalidBillCredit        = "INVALID_BILL_CREDIT"
	CodeInvalidMinimumUsageFee   = "INVALID_MINIMUM_USAGE_FEE"
	CodeSolarBuybackUnpriced     = "SOLAR_BUYBACK_UNPRICED"
	CodeIndexedApproximateOnly   = "INDEXED_APPROXIMATE_ONLY"
	CodeWindowBoundaryTruncated  = "WINDOW_BOUNDARY_TRUNCATED"
	CodeTextEvidenceInconclusive = "TEXT_EVIDENCE_INCONCLUSIVE"
)

// List is an ordered collection of issues.
type List []Issue

// Add appends an issue.
func (l *List) Add(code string, sev Severity, field, format string, args ...any) {
	*l = append(*l, Issue{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Field:    field,
	})
}

// HasErrors reports whether any issue is an error.
func (l List) HasErrors() bool {
	for _, i := range l {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Codes returns issue codes in order.
func (l List) Codes() []string {
	codes := make([]string, 0, len(l))
	for _, i := range l {
		codes = append(codes, i.Code)
	}
	return codes
}

// Has reports whether an issue with the given code is present.
func (l List) Has(code string) bool {
	for _, i := range l {
		if i.Code == code {
			return true
		}
	}
	return false
}

// First returns the first issue at or above the severity.
func (l List) First(at Severity) (Issue, bool) {
	for _, i := range l {
		if i.Severity >= at {
			return i, true
		}
	}
	return Issue{}, false
}
