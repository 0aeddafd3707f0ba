package chaos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/domain"
	"libradesk/internal/storage"
	"libradesk/internal/store"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	ctx := context.Background()
	lib, err := NewLibrary(ctx, storage.NewMemory(0), nil)
	require.NoError(t, err)
	require.NoError(t, lib.Seed(ctx, 3, 4))
	return lib
}

func TestFaultyKVFailsAfterN(t *testing.T) {
	ctx := context.Background()
	kv := NewFaultyKV(storage.NewMemory(0))
	kv.Inject(Fault{Op: OpPut, Key: "a", After: 1, Fail: true})

	require.NoError(t, kv.Put(ctx, "a", []byte("1")))
	err := kv.Put(ctx, "a", []byte("2"))
	assert.ErrorIs(t, err, ErrInjected)
	require.NoError(t, kv.Put(ctx, "b", []byte("3")))

	data, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(data))

	kv.Clear()
	assert.NoError(t, kv.Put(ctx, "a", []byte("4")))
}

func TestFaultyKVCustomErrorAndLatency(t *testing.T) {
	ctx := context.Background()
	kv := NewFaultyKV(storage.NewMemory(0))
	kv.Inject(Fault{Op: OpGet, Latency: 20 * time.Millisecond, Fail: true, Err: storage.ErrQuotaExceeded})

	start := time.Now()
	_, _, err := kv.Get(ctx, "anything")
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = kv.Get(cancelled, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBookWriteFailureCompensates(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()
	before := lib.Store.Snapshot()

	lib.KV.Inject(Fault{Op: OpPut, Key: store.BooksKey, Fail: true})
	snap := lib.Store.Snapshot()
	_, err := lib.Loans.CreateLoan(ctx, snap.Users[0].ID, snap.Books[0].ID)
	require.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, ErrInjected)
	lib.KV.Clear()

	persisted, err := lib.persisted(ctx)
	require.NoError(t, err)
	same, err := sameState(before, persisted)
	require.NoError(t, err)
	assert.True(t, same)
	assert.Equal(t, before, lib.Store.Snapshot())
}

func TestRegisteredExperimentsHold(t *testing.T) {
	lib := newTestLibrary(t)
	engine := NewEngine(nil)
	engine.RegisterExperiments(lib)
	require.Len(t, engine.Experiments(), 4)

	for _, exp := range engine.Experiments() {
		t.Run(exp.Name, func(t *testing.T) {
			result, err := engine.RunExperiment(context.Background(), exp)
			require.NoError(t, err)
			assert.True(t, result.SteadyStateValid)
			assert.Empty(t, result.Violations)
			assert.Empty(t, result.FailedAssertions)
			assert.True(t, result.HypothesisHeld)
		})
	}
	assert.Len(t, engine.Results(), 4)
}

func TestFaultExperimentsRecordErrors(t *testing.T) {
	lib := newTestLibrary(t)
	engine := NewEngine(nil)

	result, err := engine.RunExperiment(context.Background(), lib.BookWriteFailureExperiment())
	require.NoError(t, err)
	require.NotEmpty(t, result.ErrorEvents)
	assert.Equal(t, "circulation", result.ErrorEvents[0].Component)
	assert.True(t, result.HypothesisHeld)
}

func TestSteadyStateViolationAborts(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()

	// Mark a book unavailable without a loan.
	require.NoError(t, lib.Store.Update(ctx, "corrupt", func(tx *store.Tx) error {
		b := tx.View().Books[0]
		b.Available = false
		return tx.ReplaceBook(b)
	}))

	engine := NewEngine(nil)
	result, err := engine.RunExperiment(ctx, lib.BookWriteFailureExperiment())
	assert.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, result.SteadyStateValid)
	assert.NotEmpty(t, result.Violations)
}

func TestGameDayReportsFailedHypotheses(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(nil)

	passing := Experiment{
		Name: "always-zero",
		SteadyState: []Metric{{
			Name:      "zero",
			Query:     func(context.Context) (float64, error) { return 0, nil },
			Threshold: Threshold{Operator: "==", Value: 0},
		}},
	}
	var broken bool
	failing := Experiment{
		Name: "breaks-during-workload",
		SteadyState: []Metric{{
			Name: "broken",
			Query: func(context.Context) (float64, error) {
				if broken {
					return 1, nil
				}
				return 0, nil
			},
			Threshold: Threshold{Operator: "<", Value: 1},
		}},
		Workload: []Action{{
			Type:   "break",
			Target: "test",
			Execute: func(context.Context) error {
				broken = true
				return errors.New("boom")
			},
		}},
	}

	err := engine.ExecuteGameDay(ctx, GameDay{Name: "test", Scenarios: []Experiment{passing, failing}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaks-during-workload")
	assert.NotContains(t, err.Error(), "always-zero")

	require.NoError(t, engine.ExecuteGameDay(ctx, GameDay{Name: "calm", Scenarios: []Experiment{passing}}))
}

func TestEvaluateThreshold(t *testing.T) {
	assert.True(t, evaluateThreshold(2, Threshold{Operator: ">", Value: 1}))
	assert.True(t, evaluateThreshold(1, Threshold{Operator: ">=", Value: 1}))
	assert.True(t, evaluateThreshold(0, Threshold{Operator: "<=", Value: 1}))
	assert.False(t, evaluateThreshold(1, Threshold{Operator: "<", Value: 1}))
	assert.False(t, evaluateThreshold(1, Threshold{Operator: "!=", Value: 0}))
}
