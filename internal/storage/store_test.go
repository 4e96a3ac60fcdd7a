package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
)

func samplePolicy(id string) model.PolicyRecord {
	return model.PolicyRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		RunID:           "run-" + id,
		Actions:         []float64{0, -500, -1000, -1750, -2500},
		States:          128,
		Table:           []byte{1, 2, 3, 4, 5},
		CreatedAtUTC:    "2026-01-02T03:04:05Z",
	}
}

func sampleRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		PolicyID:        "policy-" + id,
		Seed:            7,
		Episodes:        3,
		Successes:       1,
		VisitedStates:   12,
		FinalEpsilon:    0.09,
		Returns:         []float64{-100, -50, 100},
		CreatedAtUTC:    createdAt,
	}
}

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	_, ok, err := store.GetPolicy(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	policy := samplePolicy("p1")
	require.NoError(t, store.SavePolicy(ctx, policy))
	loaded, ok, err := store.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, policy, loaded)

	policy.Table = []byte{9, 9}
	require.NoError(t, store.SavePolicy(ctx, policy))
	loaded, _, err = store.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, loaded.Table)

	require.NoError(t, store.SaveRun(ctx, sampleRun("r-old", "2026-01-01T00:00:00Z")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("r-new", "2026-02-01T00:00:00Z")))
	run, ok, err := store.GetRun(ctx, "r-old")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRun("r-old", "2026-01-01T00:00:00Z"), run)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r-new", runs[0].ID)
	assert.Equal(t, "r-old", runs[1].ID)

	for _, mode := range []string{"validation", "gt"} {
		require.NoError(t, store.SaveEvaluation(ctx, model.EvaluationRecord{
			VersionedRecord: CurrentVersion(),
			PolicyID:        "p1",
			Mode:            mode,
			Fitness:         0.5,
			Successes:       1,
			Episodes:        2,
		}))
	}
	evaluations, err := store.ListEvaluations(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, evaluations, 2)
	assert.Equal(t, "gt", evaluations[0].Mode)
	assert.Equal(t, "validation", evaluations[1].Mode)

	none, err := store.ListEvaluations(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, none)

	stale := samplePolicy("p-stale")
	stale.SchemaVersion = CurrentSchemaVersion + 1
	err = store.SavePolicy(ctx, stale)
	assert.True(t, errors.Is(err, ErrVersionMismatch), "unexpected error: %v", err)
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesSlices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	policy := samplePolicy("p1")
	require.NoError(t, store.SavePolicy(ctx, policy))
	policy.Actions[0] = 42
	policy.Table[0] = 42

	loaded, _, err := store.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, loaded.Actions[0])
	assert.Equal(t, byte(1), loaded.Table[0])
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	err := NewMemoryStore().SavePolicy(context.Background(), samplePolicy("p1"))
	require.Error(t, err)
}

func TestCodecRejectsVersionMismatch(t *testing.T) {
	run := sampleRun("r1", "2026-01-01T00:00:00Z")
	run.CodecVersion = 99
	payload, err := EncodeRun(run)
	require.NoError(t, err)

	_, err = DecodeRun(payload)
	require.ErrorIs(t, err, ErrVersionMismatch)

	payload, err = EncodePolicy(samplePolicy("p1"))
	require.NoError(t, err)
	policy, err := DecodePolicy(payload)
	require.NoError(t, err)
	assert.Equal(t, samplePolicy("p1"), policy)

	_, err = DecodeEvaluation([]byte(`{"schema_version":0}`))
	require.ErrorIs(t, err, ErrVersionMismatch)
	_, err = DecodePolicy([]byte(`not json`))
	require.Error(t, err)
}

func TestNewStoreKinds(t *testing.T) {
	store, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(DefaultStoreKind, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore("file", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	require.NoError(t, CloseIfSupported(store))

	_, err = NewStore("file", "")
	require.Error(t, err)
	_, err = NewStore("unknown", "")
	require.Error(t, err)
}

// wrappedStore hides the concrete backend behind the interface.
type wrappedStore struct {
	Store
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "memory", KindOf(NewMemoryStore()))
	assert.Equal(t, "file", KindOf(NewFileStore(t.TempDir())))
	assert.Equal(t, "custom", KindOf(wrappedStore{Store: NewMemoryStore()}))
}
