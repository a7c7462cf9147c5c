package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplica_MergeKeepsUnknownFields(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.Put("1", map[string]any{"name": "Frog", "notes": "keep me"})

	require.NoError(t, r.MergeSet(ctx, "1", map[string]any{"name": "Tree frog", "habitat": nil}))

	doc, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "Tree frog", "habitat": nil, "notes": "keep me"}, doc)
}

func TestReplica_GetAllSortedCopies(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.MergeSet(ctx, "2", map[string]any{"name": "b"}))
	require.NoError(t, r.MergeSet(ctx, "1", map[string]any{"name": "a"}))

	docs, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].Key)
	assert.Equal(t, "2", docs[1].Key)

	docs[0].Fields["name"] = "changed"
	doc, _ := r.Get("1")
	assert.Equal(t, "a", doc["name"])
}

func TestReplica_InjectedFailures(t *testing.T) {
	r := New()
	boom := errors.New("permission denied")
	r.FailMerge = boom
	r.FailGetAll = boom

	assert.ErrorIs(t, r.MergeSet(context.Background(), "1", nil), boom)
	_, err := r.GetAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}
