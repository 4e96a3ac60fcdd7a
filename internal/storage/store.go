package storage

import (
	"context"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
)

// Store defines persistence operations for trained policies, training runs
// and policy evaluations.
type Store interface {
	Init(ctx context.Context) error
	SavePolicy(ctx context.Context, policy model.PolicyRecord) error
	GetPolicy(ctx context.Context, id string) (model.PolicyRecord, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveEvaluation(ctx context.Context, evaluation model.EvaluationRecord) error
	ListEvaluations(ctx context.Context, policyID string) ([]model.EvaluationRecord, error)
}
