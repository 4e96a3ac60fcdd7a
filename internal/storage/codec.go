package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodePolicy(p model.PolicyRecord) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePolicy(data []byte) (model.PolicyRecord, error) {
	var policy model.PolicyRecord
	if err := json.Unmarshal(data, &policy); err != nil {
		return model.PolicyRecord{}, err
	}
	if err := checkVersion(policy.VersionedRecord); err != nil {
		return model.PolicyRecord{}, err
	}
	return policy, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeEvaluation(e model.EvaluationRecord) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvaluation(data []byte) (model.EvaluationRecord, error) {
	var evaluation model.EvaluationRecord
	if err := json.Unmarshal(data, &evaluation); err != nil {
		return model.EvaluationRecord{}, err
	}
	if err := checkVersion(evaluation.VersionedRecord); err != nil {
		return model.EvaluationRecord{}, err
	}
	return evaluation, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}

func sortEvaluations(evaluations []model.EvaluationRecord) {
	sort.Slice(evaluations, func(i, j int) bool {
		return evaluations[i].Mode < evaluations[j].Mode
	})
}

func clonePolicy(p model.PolicyRecord) model.PolicyRecord {
	p.Actions = append([]float64(nil), p.Actions...)
	p.Table = append([]byte(nil), p.Table...)
	return p
}

func cloneRun(r model.RunRecord) model.RunRecord {
	r.Returns = append([]float64(nil), r.Returns...)
	return r
}
