package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageOrderRespectsDependencies(t *testing.T) {
	seen := map[string]bool{}
	for _, stage := range StageOrder {
		for _, dep := range Dependencies(stage) {
			require.True(t, seen[dep], "stage %s runs before its dependency %s", stage, dep)
		}
		seen[stage] = true
	}
}

func TestStageOrderCoversEveryKnownStage(t *testing.T) {
	require.Len(t, StageOrder, len(stageDeps))
	for _, stage := range StageOrder {
		require.True(t, KnownStage(stage))
	}
}

func TestKnownStage(t *testing.T) {
	require.True(t, KnownStage(StageStaging))
	require.True(t, KnownStage(StageSalesOverview))
	require.False(t, KnownStage("customer_features"))
	require.False(t, KnownStage(""))
}

func TestUnknownStageError(t *testing.T) {
	err := &UnknownStageError{Stage: "nope"}
	require.Equal(t, `unknown stage "nope"`, err.Error())
}

func TestPartitionKeysDisjointAndComplete(t *testing.T) {
	ids := []string{"cust-1", "cust-2", "cust-3", "cust-4", "cust-5", "cust-6", "cust-7"}
	parts := partitionKeys(ids, 3)

	seen := map[string]int{}
	for _, part := range parts {
		require.NotEmpty(t, part)
		for _, id := range part {
			seen[id]++
		}
	}
	require.Len(t, seen, len(ids))
	for id, n := range seen {
		require.Equal(t, 1, n, "id %s assigned twice", id)
	}
}

func TestPartitionKeysStable(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	require.Equal(t, partitionKeys(ids, 4), partitionKeys(ids, 4))
}

func TestPartitionKeysDegenerateWorkerCount(t *testing.T) {
	parts := partitionKeys([]string{"a", "b"}, 0)
	require.Len(t, parts, 1)
	require.ElementsMatch(t, []string{"a", "b"}, parts[0])
}

func TestMemoryLockerSingleHolder(t *testing.T) {
	l := NewMemoryLocker()
	ctx := t.Context()

	ok, err := l.Acquire(ctx, StageStaging, "run-1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire(ctx, StageStaging, "run-2", 0)
	require.NoError(t, err)
	require.False(t, ok)

	// A different stage is an independent lease.
	ok, err = l.Acquire(ctx, StageCustomerFacts, "run-2", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// Release by a non-holder is a no-op.
	require.NoError(t, l.Release(ctx, StageStaging, "run-2"))
	ok, err = l.Acquire(ctx, StageStaging, "run-3", 0)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Release(ctx, StageStaging, "run-1"))
	ok, err = l.Acquire(ctx, StageStaging, "run-3", 0)
	require.NoError(t, err)
	require.True(t, ok)
}
