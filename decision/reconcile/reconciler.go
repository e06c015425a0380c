package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"efl-cost/decision/estimation"
	"efl-cost/decision/ratemodel"
	"efl-cost/decision/validation"
	"efl-cost/pkg/diag"
)

// DefaultTolerance is the accepted anchor error in cents/kWh.
var DefaultTolerance = decimal.NewFromFloat(0.05)

// Options configure a Reconciler.
type Options struct {
	Tolerance decimal.Decimal
	// Profile builds the synthetic cycle; nil uses estimation.SyntheticMonth.
	Profile estimation.ProfileFunc
}

// DefaultOptions returns the disclosure conventions.
func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance}
}

// Reconciler runs the hypothesis search. It holds no mutable state and is
// safe for concurrent use.
type Reconciler struct {
	opts Options
}

// New creates a Reconciler. A non-positive tolerance falls back to the default.
func New(opts Options) *Reconciler {
	if !opts.Tolerance.IsPositive() {
		opts.Tolerance = DefaultTolerance
	}
	return &Reconciler{opts: opts}
}

// Tolerance returns the configured anchor tolerance.
func (r *Reconciler) Tolerance() decimal.Decimal {
	return r.opts.Tolerance
}

// Reconcile checks draft against anchors and, if needed, searches for a
// single explainable repair. The draft is never modified.
func (r *Reconciler) Reconcile(text string, draft *ratemodel.RateModel, anchors ratemodel.Anchors) Result {
	res := Result{
		AnchorDiffs:        make([]AnchorDiff, 0),
		SolverStepsApplied: make([]string, 0),
		Attempts:           make([]Attempt, 0),
		Issues:             make(diag.List, 0),
	}

	points := anchors.Points()
	if len(points) == 0 {
		res.Status = StatusSkip
		res.ReasonCode = ReasonNoAnchors
		res.QueueReason = "no anchors to validate against"
		return res
	}
	if draft == nil {
		res.Status = StatusFail
		res.ReasonCode = ReasonModelInvalid
		res.QueueReason = "no draft model to reconcile"
		return res
	}

	verdict := validation.Validate(draft)
	res.Issues = append(res.Issues, verdict.Issues...)

	if draft.HasTiers() {
		res.Status = StatusFail
		res.ReasonCode = ReasonUsageTiersUnsupported
		res.QueueReason = "usage tiers are not auto-priced; manual review required"
		return res
	}

	diffs, worst := r.diffs(draft, points)
	res.AnchorDiffs = diffs
	if r.within(worst) {
		if !verdict.IsValid {
			res.Status = StatusFail
			res.ReasonCode = ReasonModelInvalid
			res.QueueReason = invalidReason(verdict.Issues)
			return res
		}
		res.Status = StatusPass
		res.ReasonCode = ReasonAnchorsMatch
		res.DerivedModel = draft.Clone()
		return res
	}

	st := &state{
		draft:    draft,
		points:   points,
		diffs:    diffs,
		evidence: ExtractEvidence(text),
		profile:  r.opts.Profile,
	}
	for _, h := range hypotheses {
		candidate, note, ok := h.apply(st)
		if !ok {
			continue
		}
		attempt := Attempt{Name: h.name, Note: note}
		if candidate == nil {
			res.Attempts = append(res.Attempts, attempt)
			continue
		}

		cdiffs, cworst := r.diffs(candidate, points)
		attempt.MaxResidualCents = &cworst
		if r.within(cworst) {
			if v := validation.Validate(candidate); v.IsValid {
				attempt.Succeeded = true
				res.Attempts = append(res.Attempts, attempt)
				res.Status = StatusPass
				res.ReasonCode = ReasonRepaired
				res.DerivedModel = candidate
				res.AnchorDiffs = cdiffs
				res.SolverStepsApplied = append(res.SolverStepsApplied, h.name)
				res.ParametersFit = h.params
				res.QueueReason = "repaired by " + h.name
				return res
			}
			attempt.Note = "matches anchors but fails validation"
		}
		res.Attempts = append(res.Attempts, attempt)
	}

	res.Status = StatusFail
	res.ReasonCode = ReasonAnchorMismatch
	res.QueueReason = mismatchReason(diffs, r.opts.Tolerance)
	return res
}

func (r *Reconciler) diffs(m *ratemodel.RateModel, points []ratemodel.AnchorPoint) ([]AnchorDiff, decimal.Decimal) {
	out := make([]AnchorDiff, 0, len(points))
	worst := decimal.Zero
	for _, p := range points {
		modeled := estimation.ModeledAverageCents(m, p.UsageKwh, r.opts.Profile)
		d := modeled.Sub(p.AvgCents).Abs()
		if d.GreaterThan(worst) {
			worst = d
		}
		out = append(out, AnchorDiff{
			UsageKwh:         p.UsageKwh,
			ExpectedAvgCents: p.AvgCents,
			ModeledAvgCents:  modeled,
			DiffCents:        d,
		})
	}
	return out, worst
}

func (r *Reconciler) within(d decimal.Decimal) bool {
	return d.LessThanOrEqual(r.opts.Tolerance)
}

func mismatchReason(diffs []AnchorDiff, tol decimal.Decimal) string {
	worst := diffs[0]
	for _, d := range diffs[1:] {
		if d.DiffCents.GreaterThan(worst.DiffCents) {
			worst = d
		}
	}
	involved := make([]string, 0, len(diffs))
	for _, d := range diffs {
		if d.DiffCents.GreaterThan(tol) {
			involved = append(involved, fmt.Sprintf("%g kWh", d.UsageKwh))
		}
	}
	return fmt.Sprintf("no repair matched anchors: largest residual %s¢/kWh at %g kWh (expected %s, modeled %s); anchors off: %s",
		worst.DiffCents.StringFixed(4), worst.UsageKwh,
		worst.ExpectedAvgCents.String(), worst.ModeledAvgCents.String(),
		strings.Join(involved, ", "))
}

func invalidReason(issues diag.List) string {
	codes := make([]string, 0)
	for _, is := range issues {
		if is.Severity == diag.SeverityError {
			codes = append(codes, is.Code)
		}
	}
	return "model matches anchors but fails validation: " + strings.Join(codes, ", ")
}
