// Package sqlite stores evaluation records in a local SQLite file, for
// single-node runs and the CLI review queue.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"efl-cost/decision/evaluation"
)

const schema = `
CREATE TABLE IF NOT EXISTS plan_evaluations (
	run_id               TEXT PRIMARY KEY,
	plan_id              TEXT NOT NULL,
	model_hash           TEXT NOT NULL,
	evaluated_at         TEXT NOT NULL,
	reconcile_status     TEXT NOT NULL,
	reconcile_reason     TEXT NOT NULL DEFAULT '',
	strength             TEXT NOT NULL,
	computability_status TEXT NOT NULL,
	computability_reason TEXT NOT NULL DEFAULT '',
	decision             TEXT NOT NULL,
	queue_reason         TEXT NOT NULL DEFAULT '',
	needs_review         INTEGER NOT NULL DEFAULT 0,
	report_json          TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_plan_evaluations_review
	ON plan_evaluations (needs_review, evaluated_at);
CREATE INDEX IF NOT EXISTS idx_plan_evaluations_plan
	ON plan_evaluations (plan_id, evaluated_at);
`

const selectColumns = `SELECT run_id, plan_id, model_hash, evaluated_at, reconcile_status,
	reconcile_reason, strength, computability_status, computability_reason, decision,
	queue_reason, report_json FROM plan_evaluations`

// row mirrors the table; timestamps are stored as RFC 3339 text so they sort.
type row struct {
	RunID               string `db:"run_id"`
	PlanID              string `db:"plan_id"`
	ModelHash           string `db:"model_hash"`
	EvaluatedAt         string `db:"evaluated_at"`
	ReconcileStatus     string `db:"reconcile_status"`
	ReconcileReason     string `db:"reconcile_reason"`
	Strength            string `db:"strength"`
	ComputabilityStatus string `db:"computability_status"`
	ComputabilityReason string `db:"computability_reason"`
	Decision            string `db:"decision"`
	QueueReason         string `db:"queue_reason"`
	NeedsReview         int    `db:"needs_review"`
	ReportJSON          string `db:"report_json"`
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func toRow(r evaluation.Record) row {
	needs := 0
	if r.NeedsReview() {
		needs = 1
	}
	return row{
		RunID:               r.RunID.String(),
		PlanID:              r.PlanID,
		ModelHash:           r.ModelHash,
		EvaluatedAt:         r.EvaluatedAt.UTC().Format(timeLayout),
		ReconcileStatus:     r.ReconcileStatus,
		ReconcileReason:     r.ReconcileReason,
		Strength:            r.Strength,
		ComputabilityStatus: r.ComputabilityStatus,
		ComputabilityReason: r.ComputabilityReason,
		Decision:            r.Decision,
		QueueReason:         r.QueueReason,
		NeedsReview:         needs,
		ReportJSON:          r.ReportJSON,
	}
}

func (r row) record() (evaluation.Record, error) {
	id, err := uuid.Parse(r.RunID)
	if err != nil {
		return evaluation.Record{}, fmt.Errorf("parse run id %q: %w", r.RunID, err)
	}
	at, err := time.Parse(timeLayout, r.EvaluatedAt)
	if err != nil {
		return evaluation.Record{}, fmt.Errorf("parse evaluated_at %q: %w", r.EvaluatedAt, err)
	}
	return evaluation.Record{
		RunID:               id,
		PlanID:              r.PlanID,
		ModelHash:           r.ModelHash,
		EvaluatedAt:         at,
		ReconcileStatus:     r.ReconcileStatus,
		ReconcileReason:     r.ReconcileReason,
		Strength:            r.Strength,
		ComputabilityStatus: r.ComputabilityStatus,
		ComputabilityReason: r.ComputabilityReason,
		Decision:            r.Decision,
		QueueReason:         r.QueueReason,
		ReportJSON:          r.ReportJSON,
	}, nil
}

// Store implements evaluation.Store on SQLite.
type Store struct {
	db *sqlx.DB
}

var _ evaluation.Store = (*Store)(nil)

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveEvaluation inserts or replaces a record by run id.
func (s *Store) SaveEvaluation(ctx context.Context, rec evaluation.Record) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO plan_evaluations (
			run_id, plan_id, model_hash, evaluated_at, reconcile_status, reconcile_reason,
			strength, computability_status, computability_reason, decision, queue_reason,
			needs_review, report_json
		) VALUES (
			:run_id, :plan_id, :model_hash, :evaluated_at, :reconcile_status, :reconcile_reason,
			:strength, :computability_status, :computability_reason, :decision, :queue_reason,
			:needs_review, :report_json
		)`, toRow(rec))
	if err != nil {
		return fmt.Errorf("insert evaluation %s: %w", rec.RunID, err)
	}
	return nil
}

// GetEvaluation retrieves one run.
func (s *Store) GetEvaluation(ctx context.Context, runID uuid.UUID) (*evaluation.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, selectColumns+` WHERE run_id = ?`, runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, evaluation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	rec, err := r.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListReviewQueue returns the newest runs awaiting manual review.
func (s *Store) ListReviewQueue(ctx context.Context, limit int) ([]evaluation.Record, error) {
	return s.list(ctx, selectColumns+` WHERE needs_review = 1 ORDER BY evaluated_at DESC, run_id LIMIT ?`, limit)
}

// ListForPlan returns every run for a plan, newest first.
func (s *Store) ListForPlan(ctx context.Context, planID string) ([]evaluation.Record, error) {
	return s.list(ctx, selectColumns+` WHERE plan_id = ? ORDER BY evaluated_at DESC, run_id`, planID)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]evaluation.Record, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	out := make([]evaluation.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
