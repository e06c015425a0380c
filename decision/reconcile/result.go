// Package reconcile corrects a draft rate model against the disclosed
// average-price anchors. The search is a fixed, ordered list of small,
// explainable hypotheses; identical inputs always yield identical results.
package reconcile

import (
	"github.com/shopspring/decimal"

	"efl-cost/decision/ratemodel"
	"efl-cost/pkg/diag"
)

// Status is the reconciliation verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Reason codes.
const (
	ReasonAnchorsMatch          = "ANCHORS_MATCH"
	ReasonRepaired              = "REPAIRED"
	ReasonNoAnchors             = "NO_ANCHORS"
	ReasonUsageTiersUnsupported = "USAGE_TIERS_UNSUPPORTED"
	ReasonAnchorMismatch        = "ANCHOR_MISMATCH"
	ReasonModelInvalid          = "MODEL_INVALID"
)

// AnchorDiff compares one disclosed anchor with the modeled average.
type AnchorDiff struct {
	UsageKwh         float64         `json:"usageKwh"`
	ExpectedAvgCents decimal.Decimal `json:"expectedAvgCentsPerKwh"`
	ModeledAvgCents  decimal.Decimal `json:"modeledAvgCentsPerKwh"`
	// DiffCents is |modeled - expected|.
	DiffCents decimal.Decimal `json:"diffCents"`
}

// Attempt records one applicable hypothesis.
type Attempt struct {
	Name             string           `json:"name"`
	MaxResidualCents *decimal.Decimal `json:"maxResidualCents,omitempty"`
	Succeeded        bool             `json:"succeeded"`
	Note             string           `json:"note,omitempty"`
}

// Result is the immutable outcome of one reconciliation run.
type Result struct {
	Status             Status               `json:"status"`
	ReasonCode         string               `json:"reasonCode"`
	DerivedModel       *ratemodel.RateModel `json:"derivedModel,omitempty"`
	AnchorDiffs        []AnchorDiff         `json:"anchorDiffs"`
	QueueReason        string               `json:"queueReason,omitempty"`
	SolverStepsApplied []string             `json:"solverStepsApplied"`
	Attempts           []Attempt            `json:"attempts"`
	// ParametersFit is the number of free values the winning step solved
	// for from the anchors. Text-sourced values count as zero.
	ParametersFit int       `json:"parametersFit"`
	Issues        diag.List `json:"issues"`
}

// Points returns the anchors the result was checked against.
func (r Result) Points() []ratemodel.AnchorPoint {
	points := make([]ratemodel.AnchorPoint, 0, len(r.AnchorDiffs))
	for _, d := range r.AnchorDiffs {
		points = append(points, ratemodel.AnchorPoint{UsageKwh: d.UsageKwh, AvgCents: d.ExpectedAvgCents})
	}
	return points
}

// IsPass reports whether downstream billing may use DerivedModel.
func (r Result) IsPass() bool {
	return r.Status == StatusPass && r.DerivedModel != nil
}

// EnvelopePoint is one anchor in the validation envelope.
type EnvelopePoint struct {
	UsageKwh               float64         `json:"usageKwh"`
	ExpectedAvgCentsPerKwh decimal.Decimal `json:"expectedAvgCentsPerKwh"`
	ModeledAvgCentsPerKwh  decimal.Decimal `json:"modeledAvgCentsPerKwh"`
}

// Envelope is the summary surfaced to manual-review queues.
type Envelope struct {
	Status        Status          `json:"status"`
	Points        []EnvelopePoint `json:"points"`
	QueueReason   string          `json:"queueReason,omitempty"`
	SolverApplied []string        `json:"solverApplied,omitempty"`
}

// Envelope builds the review-queue envelope.
func (r Result) Envelope() Envelope {
	env := Envelope{
		Status:      r.Status,
		Points:      make([]EnvelopePoint, 0, len(r.AnchorDiffs)),
		QueueReason: r.QueueReason,
	}
	for _, d := range r.AnchorDiffs {
		env.Points = append(env.Points, EnvelopePoint{
			UsageKwh:               d.UsageKwh,
			ExpectedAvgCentsPerKwh: d.ExpectedAvgCents,
			ModeledAvgCentsPerKwh:  d.ModeledAvgCents,
		})
	}
	if len(r.SolverStepsApplied) > 0 {
		env.SolverApplied = append([]string(nil), r.SolverStepsApplied...)
	}
	return env
}
