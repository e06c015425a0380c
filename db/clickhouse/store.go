// Package clickhouse stores evaluation records in ClickHouse. Rows are kept in
// a ReplacingMergeTree keyed by run id so re-evaluations are append-only and
// reads use FINAL.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"efl-cost/decision/evaluation"
)

// Schema creates the evaluations table.
const Schema = `
CREATE TABLE IF NOT EXISTS plan_evaluations (
	run_id               UUID,
	plan_id              String,
	model_hash           FixedString(64),
	evaluated_at         DateTime64(3, 'UTC'),
	reconcile_status     LowCardinality(String),
	reconcile_reason     LowCardinality(String),
	strength             LowCardinality(String),
	computability_status LowCardinality(String),
	computability_reason LowCardinality(String),
	decision             LowCardinality(String),
	queue_reason         String,
	needs_review         UInt8,
	report_json          String CODEC(ZSTD),
	_version             UInt64 DEFAULT toUnixTimestamp64Milli(now64(3))
) ENGINE = ReplacingMergeTree(_version)
ORDER BY (plan_id, run_id)
`

const selectColumns = `
	run_id, plan_id, model_hash, evaluated_at, reconcile_status, reconcile_reason,
	strength, computability_status, computability_reason, decision, queue_reason, report_json
`

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "eflcost",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Addr returns the host:port of the native protocol endpoint.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Store implements evaluation.Store using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

var _ evaluation.Store = (*Store)(nil)

// NewStore opens a ClickHouse connection. The connection is lazy; call Ping
// to verify it.
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Migrate creates the evaluations table if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create plan_evaluations: %w", err)
	}
	return nil
}

// SaveEvaluation appends one record.
func (s *Store) SaveEvaluation(ctx context.Context, rec evaluation.Record) error {
	return s.SaveEvaluations(ctx, []evaluation.Record{rec})
}

// SaveEvaluations appends records in a single batch.
func (s *Store) SaveEvaluations(ctx context.Context, recs []evaluation.Record) error {
	if len(recs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO plan_evaluations (
			run_id, plan_id, model_hash, evaluated_at, reconcile_status, reconcile_reason,
			strength, computability_status, computability_reason, decision, queue_reason,
			needs_review, report_json
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range recs {
		if err := batch.Append(
			r.RunID,
			r.PlanID,
			r.ModelHash,
			r.EvaluatedAt,
			r.ReconcileStatus,
			r.ReconcileReason,
			r.Strength,
			r.ComputabilityStatus,
			r.ComputabilityReason,
			r.Decision,
			r.QueueReason,
			boolToUInt8(r.NeedsReview()),
			r.ReportJSON,
		); err != nil {
			return fmt.Errorf("failed to append evaluation %s: %w", r.RunID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// GetEvaluation retrieves one run.
func (s *Store) GetEvaluation(ctx context.Context, runID uuid.UUID) (*evaluation.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM plan_evaluations FINAL
		WHERE run_id = ?
		LIMIT 1
	`
	rec, err := scanRecord(s.conn.QueryRow(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, evaluation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return rec, nil
}

// ListReviewQueue returns the newest runs awaiting manual review.
func (s *Store) ListReviewQueue(ctx context.Context, limit int) ([]evaluation.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM plan_evaluations FINAL
		WHERE needs_review = 1
		ORDER BY evaluated_at DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	defer rows.Close()

	out := make([]evaluation.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// LatestForPlan returns the most recent run for a plan.
func (s *Store) LatestForPlan(ctx context.Context, planID string) (*evaluation.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM plan_evaluations FINAL
		WHERE plan_id = ?
		ORDER BY evaluated_at DESC
		LIMIT 1
	`
	rec, err := scanRecord(s.conn.QueryRow(ctx, query, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, evaluation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest evaluation: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*evaluation.Record, error) {
	var rec evaluation.Record
	var at time.Time
	if err := row.Scan(
		&rec.RunID, &rec.PlanID, &rec.ModelHash, &at, &rec.ReconcileStatus, &rec.ReconcileReason,
		&rec.Strength, &rec.ComputabilityStatus, &rec.ComputabilityReason, &rec.Decision,
		&rec.QueueReason, &rec.ReportJSON,
	); err != nil {
		return nil, err
	}
	rec.EvaluatedAt = at.UTC()
	return &rec, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
