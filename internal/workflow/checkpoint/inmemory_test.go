package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/workflow/checkpoint"
)

func TestLatestOnEmptyThreadReturnsNotOK(t *testing.T) {
	s := checkpoint.NewInMemoryStore()
	_, ok, err := s.Latest(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendBuildsChainAndLatestReturnsHead(t *testing.T) {
	s := checkpoint.NewInMemoryStore()
	ctx := context.Background()

	cp1 := checkpoint.Checkpoint{ID: "cp1", ThreadID: "t1", Node: "start", CreatedAt: time.Now()}
	require.NoError(t, s.Append(ctx, cp1))

	cp2 := checkpoint.Checkpoint{ID: "cp2", ParentID: "cp1", ThreadID: "t1", Node: "next", CreatedAt: time.Now()}
	require.NoError(t, s.Append(ctx, cp2))

	latest, ok, err := s.Latest(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cp2", latest.ID)
}

func TestAppendRejectsMismatchedParent(t *testing.T) {
	s := checkpoint.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, checkpoint.Checkpoint{ID: "cp1", ThreadID: "t1"}))

	err := s.Append(ctx, checkpoint.Checkpoint{ID: "cp2", ParentID: "wrong", ThreadID: "t1"})
	assert.ErrorIs(t, err, checkpoint.ErrParentMismatch)
}

func TestAppendRejectsNonEmptyParentForNewThread(t *testing.T) {
	s := checkpoint.NewInMemoryStore()
	err := s.Append(context.Background(), checkpoint.Checkpoint{ID: "cp1", ParentID: "ghost", ThreadID: "t2"})
	assert.ErrorIs(t, err, checkpoint.ErrParentMismatch)
}

func TestChainsAreIndependentPerThread(t *testing.T) {
	s := checkpoint.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, checkpoint.Checkpoint{ID: "a1", ThreadID: "a"}))
	require.NoError(t, s.Append(ctx, checkpoint.Checkpoint{ID: "b1", ThreadID: "b"}))

	latestA, _, _ := s.Latest(ctx, "a")
	latestB, _, _ := s.Latest(ctx, "b")
	assert.Equal(t, "a1", latestA.ID)
	assert.Equal(t, "b1", latestB.ID)
}
