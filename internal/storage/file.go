package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
)

const (
	policiesDir    = "policies"
	runsDir        = "runs"
	evaluationsDir = "evaluations"
	tableExt       = ".qtable"
	recordExt      = ".json"
)

// FileStore keeps one JSON document per record under a root directory. The
// policy table itself is written next to its metadata as <id>.qtable so it
// can be consumed without the JSON envelope.
type FileStore struct {
	root string

	mu          sync.RWMutex
	initialized bool
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Kind() string { return "file" }

func (s *FileStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == "" {
		return errors.New("file store root is required")
	}
	for _, dir := range []string{policiesDir, runsDir, evaluationsDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	s.initialized = true
	return nil
}

func (s *FileStore) SavePolicy(_ context.Context, policy model.PolicyRecord) error {
	if err := checkVersion(policy.VersionedRecord); err != nil {
		return err
	}
	if err := validateID(policy.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	table := policy.Table
	policy.Table = nil
	payload, err := EncodePolicy(policy)
	if err != nil {
		return err
	}
	base := filepath.Join(s.root, policiesDir, policy.ID)
	if err := writeFileAtomic(base+tableExt, table); err != nil {
		return fmt.Errorf("write policy table %s: %w", policy.ID, err)
	}
	if err := writeFileAtomic(base+recordExt, payload); err != nil {
		return fmt.Errorf("write policy %s: %w", policy.ID, err)
	}
	return nil
}

func (s *FileStore) GetPolicy(_ context.Context, id string) (model.PolicyRecord, bool, error) {
	if err := validateID(id); err != nil {
		return model.PolicyRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	base := filepath.Join(s.root, policiesDir, id)
	payload, ok, err := readIfExists(base + recordExt)
	if err != nil || !ok {
		return model.PolicyRecord{}, false, err
	}
	policy, err := DecodePolicy(payload)
	if err != nil {
		return model.PolicyRecord{}, false, fmt.Errorf("decode policy %s: %w", id, err)
	}
	table, ok, err := readIfExists(base + tableExt)
	if err != nil {
		return model.PolicyRecord{}, false, err
	}
	if !ok {
		return model.PolicyRecord{}, false, fmt.Errorf("policy %s is missing its table file", id)
	}
	policy.Table = table
	return policy, true, nil
}

func (s *FileStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	if err := validateID(run.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.root, runsDir, run.ID+recordExt), payload)
}

func (s *FileStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	if err := validateID(id); err != nil {
		return model.RunRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok, err := readIfExists(filepath.Join(s.root, runsDir, id+recordExt))
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *FileStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(s.root, runsDir, "*"+recordExt))
	if err != nil {
		return nil, err
	}
	runs := make([]model.RunRecord, 0, len(paths))
	for _, path := range paths {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", filepath.Base(path), err)
		}
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *FileStore) SaveEvaluation(_ context.Context, evaluation model.EvaluationRecord) error {
	if err := checkVersion(evaluation.VersionedRecord); err != nil {
		return err
	}
	if err := validateID(evaluation.PolicyID); err != nil {
		return err
	}
	if err := validateID(evaluation.Mode); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	dir := filepath.Join(s.root, evaluationsDir, evaluation.PolicyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	payload, err := EncodeEvaluation(evaluation)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, evaluation.Mode+recordExt), payload)
}

func (s *FileStore) ListEvaluations(_ context.Context, policyID string) ([]model.EvaluationRecord, error) {
	if err := validateID(policyID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(s.root, evaluationsDir, policyID, "*"+recordExt))
	if err != nil {
		return nil, err
	}
	out := make([]model.EvaluationRecord, 0, len(paths))
	for _, path := range paths {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		evaluation, err := DecodeEvaluation(payload)
		if err != nil {
			return nil, fmt.Errorf("decode evaluation %s: %w", filepath.Base(path), err)
		}
		out = append(out, evaluation)
	}
	sortEvaluations(out)
	return out, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("record id is required")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid record id %q", id)
	}
	return nil
}

func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
