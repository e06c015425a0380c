// Package evaluation runs the full pipeline for a plan: ingest, validation,
// reconciliation, strength grading, wire projection, computability and the
// serve gate, optionally persisting the outcome to a review-queue store.
package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"efl-cost/decision/computability"
	"efl-cost/decision/policy"
	"efl-cost/decision/ratemodel"
	"efl-cost/decision/reconcile"
	"efl-cost/decision/strength"
	"efl-cost/decision/validation"
	"efl-cost/decision/wire"
	"efl-cost/pkg/diag"
)

// ErrNoModel is returned when a request carries neither a draft nor a model.
var ErrNoModel = errors.New("request has no draft or model")

// Config tunes the pipeline.
type Config struct {
	Tolerance decimal.Decimal
	// Workers bounds EvaluateBatch concurrency.
	Workers int
	Wire    wire.Options
}

// DefaultConfig returns the disclosure defaults.
func DefaultConfig() Config {
	return Config{
		Tolerance: reconcile.DefaultTolerance,
		Workers:   4,
	}
}

// Request is one plan to evaluate. DraftJSON takes precedence over Model.
type Request struct {
	PlanID    string               `json:"planId"`
	DraftJSON json.RawMessage      `json:"draft,omitempty"`
	Model     *ratemodel.RateModel `json:"model,omitempty"`
	Text      string               `json:"text,omitempty"`
	Anchors   ratemodel.Anchors    `json:"anchors"`
}

// Report is everything decided about one plan.
type Report struct {
	RunID          uuid.UUID                `json:"runId"`
	PlanID         string                   `json:"planId"`
	EvaluatedAt    time.Time                `json:"evaluatedAt"`
	ModelHash      string                   `json:"modelHash"`
	Validation     validation.Verdict       `json:"validation"`
	Reconciliation reconcile.Result         `json:"reconciliation"`
	Envelope       reconcile.Envelope       `json:"validationEnvelope"`
	Strength       strength.Score           `json:"strength"`
	RateStructure  *wire.RateStructure      `json:"rateStructure,omitempty"`
	WireIssues     diag.List                `json:"wireIssues"`
	Computability  computability.Verdict    `json:"computability"`
	Policy         *policy.EvaluationResult `json:"policy"`
}

// Record summarizes the report for storage.
func (r *Report) Record() (Record, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return Record{}, fmt.Errorf("marshal report: %w", err)
	}
	return Record{
		RunID:               r.RunID,
		PlanID:              r.PlanID,
		ModelHash:           r.ModelHash,
		EvaluatedAt:         r.EvaluatedAt,
		ReconcileStatus:     string(r.Reconciliation.Status),
		ReconcileReason:     r.Reconciliation.ReasonCode,
		Strength:            string(r.Strength.Strength),
		ComputabilityStatus: string(r.Computability.Status),
		ComputabilityReason: r.Computability.ReasonCode,
		Decision:            string(r.Policy.Decision),
		QueueReason:         r.Reconciliation.QueueReason,
		ReportJSON:          string(raw),
	}, nil
}

// Engine orchestrates the pipeline. It is safe for concurrent use.
type Engine struct {
	cfg        Config
	reconciler *reconcile.Reconciler
	policy     *policy.Engine
	store      Store
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() uuid.UUID
}

// NewEngine creates an evaluation engine with the default serve gate.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		cfg:        cfg,
		reconciler: reconcile.New(reconcile.Options{Tolerance: cfg.Tolerance}),
		policy:     policy.NewEngine(),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.New,
	}
}

// WithStore persists every report.
func (e *Engine) WithStore(s Store) *Engine {
	e.store = s
	return e
}

// WithPolicy replaces the serve gate.
func (e *Engine) WithPolicy(p *policy.Engine) *Engine {
	e.policy = p
	return e
}

// Evaluate runs the pipeline for one plan. Errors are returned only for a
// rejected draft or a failed store write; every pricing outcome is data.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Report, error) {
	log := e.logger.With().Str("plan_id", req.PlanID).Logger()

	model, err := e.model(req)
	if err != nil {
		log.Warn().Err(err).Msg("draft rejected")
		return nil, err
	}
	hash, err := ModelHash(model)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       e.newID(),
		PlanID:      req.PlanID,
		EvaluatedAt: e.now().UTC(),
		ModelHash:   hash,
		Validation:  validation.Validate(model),
		WireIssues:  make(diag.List, 0),
	}

	res := e.reconciler.Reconcile(req.Text, model, req.Anchors)
	report.Strength = strength.Grade(res)
	report.Reconciliation = strength.Apply(res, report.Strength)
	report.Envelope = report.Reconciliation.Envelope()

	advised := model
	if res.IsPass() {
		advised = res.DerivedModel
		rs, issues, err := wire.Project(res.DerivedModel, e.cfg.Wire)
		if err != nil {
			log.Error().Err(err).Msg("derived model failed projection")
		} else {
			report.RateStructure = &rs
		}
		report.WireIssues = append(report.WireIssues, issues...)
	}
	report.Computability = computability.Advise(advised, req.Anchors)

	report.Policy = e.policy.Evaluate(ctx, policy.EvaluationRequest{
		PlanID:         req.PlanID,
		Validation:     report.Validation,
		Reconciliation: report.Reconciliation,
		Strength:       report.Strength,
		Computability:  report.Computability,
	})

	log.Info().
		Str("run_id", report.RunID.String()).
		Str("reconcile", string(report.Reconciliation.Status)).
		Str("reason", report.Reconciliation.ReasonCode).
		Strs("solver", report.Reconciliation.SolverStepsApplied).
		Str("strength", string(report.Strength.Strength)).
		Str("computability", report.Computability.ReasonCode).
		Str("decision", string(report.Policy.Decision)).
		Msg("plan evaluated")

	if e.store != nil {
		rec, err := report.Record()
		if err != nil {
			return nil, err
		}
		if err := e.store.SaveEvaluation(ctx, rec); err != nil {
			return nil, fmt.Errorf("save evaluation %s: %w", report.RunID, err)
		}
	}
	return report, nil
}

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	PlanID string  `json:"planId"`
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// EvaluateBatch evaluates plans concurrently, bounded by Config.Workers.
// Items come back in request order; a failing plan does not stop the others.
func (e *Engine) EvaluateBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i].PlanID = req.PlanID
			report, err := e.Evaluate(gctx, req)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Report = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, fmt.Errorf("batch evaluation: %w", err)
	}

	failed := 0
	for _, it := range items {
		if it.Error != "" {
			failed++
		}
	}
	e.logger.Info().Int("plans", len(reqs)).Int("failed", failed).Msg("batch evaluated")
	return items, nil
}

func (e *Engine) model(req Request) (*ratemodel.RateModel, error) {
	if len(req.DraftJSON) > 0 {
		return ratemodel.ParseDraft(req.DraftJSON)
	}
	if req.Model != nil {
		return req.Model, nil
	}
	return nil, ErrNoModel
}

// ModelHash is a stable fingerprint of a model's canonical JSON.
func ModelHash(m *ratemodel.RateModel) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal model: %w", err)
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:]), nil
}
