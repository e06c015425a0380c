package evaluation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a run does not exist.
var ErrNotFound = errors.New("evaluation not found")

// Record is the persisted summary of one evaluation run. ReportJSON holds the
// full report for audit.
type Record struct {
	RunID               uuid.UUID `json:"runId" db:"run_id"`
	PlanID              string    `json:"planId" db:"plan_id"`
	ModelHash           string    `json:"modelHash" db:"model_hash"`
	EvaluatedAt         time.Time `json:"evaluatedAt" db:"evaluated_at"`
	ReconcileStatus     string    `json:"reconcileStatus" db:"reconcile_status"`
	ReconcileReason     string    `json:"reconcileReason" db:"reconcile_reason"`
	Strength            string    `json:"strength" db:"strength"`
	ComputabilityStatus string    `json:"computabilityStatus" db:"computability_status"`
	ComputabilityReason string    `json:"computabilityReason" db:"computability_reason"`
	Decision            string    `json:"decision" db:"decision"`
	QueueReason         string    `json:"queueReason" db:"queue_reason"`
	ReportJSON          string    `json:"-" db:"report_json"`
}

// NeedsReview reports whether the plan belongs in the manual-review queue.
func (r Record) NeedsReview() bool {
	return r.Decision != "pass"
}

// Store persists evaluation records. Implementations live under db/.
type Store interface {
	SaveEvaluation(ctx context.Context, rec Record) error
	GetEvaluation(ctx context.Context, runID uuid.UUID) (*Record, error)
	// ListReviewQueue returns the newest records whose decision is not pass.
	ListReviewQueue(ctx context.Context, limit int) ([]Record, error)
}
