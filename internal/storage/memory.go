package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	policies    map[string]model.PolicyRecord
	runs        map[string]model.RunRecord
	evaluations map[string]map[string]model.EvaluationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Kind() string { return "memory" }

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.policies = make(map[string]model.PolicyRecord)
	s.runs = make(map[string]model.RunRecord)
	s.evaluations = make(map[string]map[string]model.EvaluationRecord)
	return nil
}

var errNotInitialized = errors.New("store is not initialized")

func (s *MemoryStore) SavePolicy(_ context.Context, policy model.PolicyRecord) error {
	if err := checkVersion(policy.VersionedRecord); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.policies[policy.ID] = clonePolicy(policy)
	return nil
}

func (s *MemoryStore) GetPolicy(_ context.Context, id string) (model.PolicyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[id]
	if !ok {
		return model.PolicyRecord{}, false, nil
	}
	return clonePolicy(policy), true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveEvaluation(_ context.Context, evaluation model.EvaluationRecord) error {
	if err := checkVersion(evaluation.VersionedRecord); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	byMode, ok := s.evaluations[evaluation.PolicyID]
	if !ok {
		byMode = make(map[string]model.EvaluationRecord)
		s.evaluations[evaluation.PolicyID] = byMode
	}
	byMode[evaluation.Mode] = evaluation
	return nil
}

func (s *MemoryStore) ListEvaluations(_ context.Context, policyID string) ([]model.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.EvaluationRecord, 0, len(s.evaluations[policyID]))
	for _, evaluation := range s.evaluations[policyID] {
		out = append(out, evaluation)
	}
	sortEvaluations(out)
	return out, nil
}
