// Package policy provides the serve gate: it decides whether an evaluated
// plan may be priced for customers automatically (pass), needs attention
// (warn) or must go to manual review (deny).
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"efl-cost/decision/computability"
	"efl-cost/decision/reconcile"
	"efl-cost/decision/strength"
	"efl-cost/decision/validation"
	"efl-cost/pkg/diag"
	"efl-cost/pkg/platform"
)

// PolicyType defines the type of policy
type PolicyType string

const (
	PolicyTypeValidModel         PolicyType = "valid_model"
	PolicyTypeReconciliationPass PolicyType = "reconciliation_pass"
	PolicyTypeStrongPass         PolicyType = "strong_pass"
	PolicyTypeComputable         PolicyType = "computable"
	PolicyTypeMinConfidence      PolicyType = "min_confidence"
	PolicyTypeApproximateOnly    PolicyType = "approximate_only"
)

// Severity defines policy violation severity
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Decision is the policy evaluation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// Policy defines a serve rule
type Policy struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        PolicyType `json:"type"`
	Severity    Severity   `json:"severity"`
	Threshold   float64    `json:"threshold"`
	Enabled     bool       `json:"enabled"`
}

// Violation represents a policy violation
type Violation struct {
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
}

// Warning represents a policy warning
type Warning struct {
	PolicyID string `json:"policy_id"`
	Message  string `json:"message"`
}

// EvaluationRequest carries every verdict produced for one plan.
type EvaluationRequest struct {
	PlanID         string
	Validation     validation.Verdict
	Reconciliation reconcile.Result
	Strength       strength.Score
	Computability  computability.Verdict
	CustomPolicies []Policy
}

// EvaluationResult contains the policy evaluation outcome
type EvaluationResult struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	Warnings    []Warning   `json:"warnings"`
	PoliciesRan int         `json:"policies_ran"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// AutoServe reports whether the plan may be priced without review.
func (r *EvaluationResult) AutoServe() bool {
	return r.Decision == DecisionPass
}

// Engine evaluates serve policies
type Engine struct {
	policies    []Policy
	opaEndpoint string
	opaClient   *platform.HTTPClient
	now         func() time.Time
}

// NewEngine creates a new policy engine with the default serve gate
func NewEngine() *Engine {
	return &Engine{
		policies: DefaultPolicies(),
		now:      time.Now,
	}
}

// WithOPA configures OPA integration. OPA is asked for deny messages at
// <endpoint>/v1/data/eflcost/deny.
func (e *Engine) WithOPA(endpoint string, client *platform.HTTPClient) *Engine {
	e.opaEndpoint = strings.TrimRight(endpoint, "/")
	e.opaClient = client
	return e
}

// WithClock overrides the evaluation timestamp source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// AddPolicy adds a custom policy
func (e *Engine) AddPolicy(p Policy) {
	e.policies = append(e.policies, p)
}

// Policies returns the configured policies.
func (e *Engine) Policies() []Policy {
	return append([]Policy(nil), e.policies...)
}

// Evaluate runs all policies. An unreachable OPA endpoint denies.
func (e *Engine) Evaluate(ctx context.Context, req EvaluationRequest) *EvaluationResult {
	result := &EvaluationResult{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		Warnings:    make([]Warning, 0),
		EvaluatedAt: e.now().UTC(),
	}

	all := append(e.Policies(), req.CustomPolicies...)
	for _, p := range all {
		if !p.Enabled {
			continue
		}

		result.PoliciesRan++
		violation, warning := evaluatePolicy(p, req)

		if violation != nil {
			result.Violations = append(result.Violations, *violation)
			if p.Severity == SeverityError {
				result.Decision = DecisionDeny
			} else if result.Decision != DecisionDeny {
				result.Decision = DecisionWarn
			}
		}

		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
			if result.Decision == DecisionPass {
				result.Decision = DecisionWarn
			}
		}
	}

	if e.opaEndpoint != "" && e.opaClient != nil {
		denies, err := e.evaluateOPA(ctx, req)
		if err != nil {
			denies = []string{fmt.Sprintf("OPA evaluation failed: %v", err)}
		}
		for _, msg := range denies {
			result.Violations = append(result.Violations, Violation{
				PolicyID:   "opa",
				PolicyName: "OPA",
				Message:    msg,
				Severity:   string(SeverityError),
			})
		}
		if len(denies) > 0 {
			result.Decision = DecisionDeny
		}
	}

	return result
}

func evaluatePolicy(p Policy, req EvaluationRequest) (*Violation, *Warning) {
	fail := func(msg string) (*Violation, *Warning) {
		if p.Severity == SeverityError {
			return &Violation{PolicyID: p.ID, PolicyName: p.Name, Message: msg, Severity: string(p.Severity)}, nil
		}
		return nil, &Warning{PolicyID: p.ID, Message: msg}
	}

	switch p.Type {
	case PolicyTypeValidModel:
		if req.Validation.RequiresManualReview {
			codes := make([]string, 0)
			for _, is := range req.Validation.Issues {
				if is.Severity == diag.SeverityError {
					codes = append(codes, is.Code)
				}
			}
			return fail("rate model requires manual review: " + strings.Join(codes, ", "))
		}

	case PolicyTypeReconciliationPass:
		if req.Reconciliation.Status != reconcile.StatusPass {
			return fail(fmt.Sprintf("reconciliation %s (%s)", req.Reconciliation.Status, req.Reconciliation.ReasonCode))
		}

	case PolicyTypeStrongPass:
		if req.Reconciliation.Status == reconcile.StatusPass && req.Strength.Strength != strength.StrengthStrong {
			return fail(fmt.Sprintf("PASS graded %s; %s", req.Strength.Strength, strength.ManualReviewNote))
		}

	case PolicyTypeComputable:
		if !req.Computability.IsComputable() {
			return fail(fmt.Sprintf("plan is %s (%s)", req.Computability.Status, req.Computability.ReasonCode))
		}

	case PolicyTypeMinConfidence:
		if req.Strength.Confidence < p.Threshold/100 {
			return fail(fmt.Sprintf("confidence (%.0f%%) below threshold (%.0f%%)", req.Strength.Confidence*100, p.Threshold))
		}

	case PolicyTypeApproximateOnly:
		if len(req.Computability.SupportedFeatures.EstimateModesAllowed) > 0 {
			return fail("plan can only be priced approximately: " +
				strings.Join(req.Computability.SupportedFeatures.EstimateModesAllowed, ", "))
		}
	}

	return nil, nil
}

type opaResponse struct {
	Result []string `json:"result"`
}

func (e *Engine) evaluateOPA(ctx context.Context, req EvaluationRequest) ([]string, error) {
	input := map[string]any{
		"plan_id":               req.PlanID,
		"is_valid":              req.Validation.IsValid,
		"reconciliation_status": string(req.Reconciliation.Status),
		"reconciliation_reason": req.Reconciliation.ReasonCode,
		"solver_steps":          req.Reconciliation.SolverStepsApplied,
		"strength":              string(req.Strength.Strength),
		"confidence":            req.Strength.Confidence,
		"computability_status":  string(req.Computability.Status),
		"computability_reason":  req.Computability.ReasonCode,
	}
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal opa input: %w", err)
	}

	resp, err := e.opaClient.PostJSON(ctx, e.opaEndpoint+"/v1/data/eflcost/deny", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opa returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read opa response: %w", err)
	}
	var out opaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode opa response: %w", err)
	}
	return out.Result, nil
}

// DefaultPolicies is the serve gate: only a valid, computable, STRONG PASS
// is served automatically.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			ID:          "valid-model",
			Name:        "Valid Rate Model",
			Description: "Deny models with structural errors",
			Type:        PolicyTypeValidModel,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			ID:          "reconciliation-pass",
			Name:        "Anchors Reconciled",
			Description: "Deny plans whose model does not reproduce the disclosed anchors",
			Type:        PolicyTypeReconciliationPass,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			ID:          "strong-pass",
			Name:        "Strong Pass Only",
			Description: "Deny PASS results graded WEAK or INVALID",
			Type:        PolicyTypeStrongPass,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			ID:          "computable",
			Name:        "Computable Plan",
			Description: "Deny plans that cannot be priced from usage history",
			Type:        PolicyTypeComputable,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			ID:          "approximate-only",
			Name:        "Approximate Pricing",
			Description: "Warn when only anchor-interpolated estimates are allowed",
			Type:        PolicyTypeApproximateOnly,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
	}
}
