package replication_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecowatch/internal/remote/memory"
	"github.com/roach88/ecowatch/internal/replication"
	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/store"
	"github.com/roach88/ecowatch/internal/testutil"
)

const now = int64(1_700_000_000_000)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "sync.db"),
		store.WithClock(testutil.NewStepClock(1_000_000, 10)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newEngine(local replication.LocalStore, remote replication.Replica, opts ...replication.Option) *replication.Engine {
	opts = append([]replication.Option{
		replication.WithClock(testutil.NewStepClock(now, 0)),
		replication.WithKeyGenerator(testutil.NewSequentialKeyGenerator("")),
	}, opts...)
	return replication.New(local, remote, opts...)
}

func frog() species.Entry {
	return species.Entry{
		ID:          7,
		Name:        "Tree frog",
		Habitat:     species.Ptr("wetland"),
		Population:  species.Ptr(40),
		MinTemp:     species.Ptr(12.5),
		MaxHumidity: species.Ptr(95.0),
		Lat:         species.Ptr(48.85),
		Lng:         species.Ptr(2.35),
		CreatedAt:   1_600_000_000_000,
	}
}

func TestPushOne_WritesFullFieldSet(t *testing.T) {
	remote := memory.New()
	e := newEngine(nil, remote)

	key, err := e.PushOne(context.Background(), frog())
	require.NoError(t, err)
	assert.Equal(t, "7", key)

	doc, ok := remote.Get("7")
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"id":          int64(7),
		"name":        "Tree frog",
		"habitat":     "wetland",
		"status":      nil,
		"population":  40,
		"minTemp":     12.5,
		"maxTemp":     nil,
		"minHumidity": nil,
		"maxHumidity": 95.0,
		"lat":         48.85,
		"lng":         2.35,
		"address":     nil,
		"createdAt":   int64(1_600_000_000_000),
	}, doc)
}

func TestPushOne_MergePreservesUnknownRemoteFields(t *testing.T) {
	remote := memory.New()
	remote.Put("7", map[string]any{"name": "old", "observer": "field team"})
	e := newEngine(nil, remote)

	_, err := e.PushOne(context.Background(), frog())
	require.NoError(t, err)

	doc, _ := remote.Get("7")
	assert.Equal(t, "Tree frog", doc["name"])
	assert.Equal(t, "field team", doc["observer"])
}

func TestPushOne_UnassignedIDUsesGeneratedKey(t *testing.T) {
	remote := memory.New()
	e := newEngine(nil, remote)

	entry := species.Entry{Name: "Newt", MinTemp: species.Ptr(4.0)}
	key, err := e.PushOne(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, "test-key-1", key)

	doc, ok := remote.Get("test-key-1")
	require.True(t, ok)
	assert.Equal(t, int64(0), doc["id"])
	assert.Equal(t, now, doc["createdAt"], "missing createdAt is stamped at push time")
}

func TestPushOne_FailureIsSyncError(t *testing.T) {
	remote := memory.New()
	boom := errors.New("permission denied")
	remote.FailMerge = boom
	e := newEngine(nil, remote)

	_, err := e.PushOne(context.Background(), frog())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var se *replication.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "push", se.Op)
	assert.Equal(t, replication.PhaseWrite, se.Phase)
	assert.Equal(t, "7", se.Key)
}

// failingReplica fails the merge numbered failAt (1-based).
type failingReplica struct {
	*memory.Replica
	calls  atomic.Int32
	failAt int32
}

func (r *failingReplica) MergeSet(ctx context.Context, key string, fields map[string]any) error {
	if r.calls.Add(1) == r.failAt {
		return errors.New("network unreachable")
	}
	return r.Replica.MergeSet(ctx, key, fields)
}

func TestPushAll_StopsAtFirstFailure(t *testing.T) {
	remote := &failingReplica{Replica: memory.New(), failAt: 2}
	e := newEngine(nil, remote)

	entries := []species.Entry{
		{ID: 3, Name: "a", MinTemp: species.Ptr(1.0)},
		{ID: 2, Name: "b", MinTemp: species.Ptr(1.0)},
		{ID: 1, Name: "c", MinTemp: species.Ptr(1.0)},
	}
	pushed, err := e.PushAll(context.Background(), entries)
	require.Error(t, err)
	assert.True(t, replication.IsSyncError(err))
	assert.Equal(t, 1, pushed)
	assert.Equal(t, int32(2), remote.calls.Load(), "no pushes after the failure")

	_, ok := remote.Get("3")
	assert.True(t, ok)
	_, ok = remote.Get("1")
	assert.False(t, ok)
}

func TestPushAll_Empty(t *testing.T) {
	e := newEngine(nil, memory.New())
	pushed, err := e.PushAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)
}

func TestPullReplace_SkipsDocumentsWithoutName(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, species.Entry{Name: "Local only", MinTemp: species.Ptr(1.0)})
	require.NoError(t, err)

	remote := memory.New()
	remote.Put("10", map[string]any{
		"id": float64(10), "name": "Axolotl", "habitat": "lake",
		"population": float64(12), "minTemp": float64(14), "maxTemp": 20.5,
		"createdAt": float64(1_650_000_000_000),
	})
	remote.Put("11", map[string]any{
		"id": float64(11), "name": "Fire salamander", "status": "vulnerable",
		"minHumidity": float64(60), "lat": 45.1, "lng": 6.2, "address": "Grenoble",
		"createdAt": float64(1_660_000_000_000),
	})
	remote.Put("12", map[string]any{"id": float64(12), "habitat": "pond", "minTemp": float64(3)})

	res, err := newEngine(s, remote).PullReplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "12", res.Skipped[0].Key)
	assert.True(t, replication.IsDecodeError(res.Skipped[0]))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []species.Entry{
		{
			ID: 11, Name: "Fire salamander", Status: species.Ptr("vulnerable"),
			MinHumidity: species.Ptr(60.0), Lat: species.Ptr(45.1), Lng: species.Ptr(6.2),
			Address: species.Ptr("Grenoble"), CreatedAt: 1_660_000_000_000,
		},
		{
			ID: 10, Name: "Axolotl", Habitat: species.Ptr("lake"), Population: species.Ptr(12),
			MinTemp: species.Ptr(14.0), MaxTemp: species.Ptr(20.5), CreatedAt: 1_650_000_000_000,
		},
	}, all)
}

func TestPullReplace_SkipsBlankNames(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	remote := memory.New()
	remote.Put("1", map[string]any{"id": float64(1), "name": "Newt", "minTemp": float64(4)})
	remote.Put("2", map[string]any{"id": float64(2), "name": "Toad", "maxTemp": float64(22)})
	remote.Put("9", map[string]any{"id": float64(9), "name": "  "})

	res, err := newEngine(s, remote).PullReplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "9", res.Skipped[0].Key)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPullReplace_FetchFailureLeavesLocalIntact(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, species.Entry{Name: "Keep", MinTemp: species.Ptr(1.0)})
	require.NoError(t, err)

	remote := memory.New()
	remote.FailGetAll = errors.New("unauthenticated")

	_, err = newEngine(s, remote).PullReplace(ctx)
	var se *replication.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, replication.PhaseFetch, se.Phase)
	assert.False(t, replication.IsPartialRestore(err))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPullReplace_InsertFailureIsPartialRestore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, species.Entry{Name: "Lost", MinTemp: species.Ptr(1.0)})
	require.NoError(t, err)

	remote := memory.New()
	remote.Put("1", map[string]any{"id": 1, "name": "First", "minTemp": 2.0})
	remote.Put("2", map[string]any{"id": 2, "name": "Broken", "maxHumidity": 150.0})
	remote.Put("3", map[string]any{"id": 3, "name": "Never", "minTemp": 2.0})

	res, err := newEngine(s, remote).PullReplace(ctx)
	require.Error(t, err)
	assert.True(t, replication.IsPartialRestore(err))
	assert.True(t, store.IsConstraintError(err))
	assert.Equal(t, 1, res.Applied)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "First", all[0].Name)
}

func TestPushAllThenPullRoundTrips(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, e := range []species.Entry{frog(), {Name: "Newt", Status: species.Ptr("common"), MaxTemp: species.Ptr(22.0)}} {
		_, err := s.Upsert(ctx, e)
		require.NoError(t, err)
	}
	before, err := s.All(ctx)
	require.NoError(t, err)

	remote := memory.New()
	e := newEngine(s, remote)
	_, err = e.PushAll(ctx, before)
	require.NoError(t, err)
	require.NoError(t, s.DeleteAll(ctx))

	res, err := e.PullReplace(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)

	after, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

type recorder struct {
	pushes, pushErrs int
	applied, skipped int
	pullErr          error
}

func (r *recorder) SyncPush(err error) {
	r.pushes++
	if err != nil {
		r.pushErrs++
	}
}

func (r *recorder) SyncPull(applied, skipped int, err error) {
	r.applied, r.skipped, r.pullErr = applied, skipped, err
}

func TestEngine_RecordsOutcomes(t *testing.T) {
	s := newStore(t)
	remote := memory.New()
	rec := &recorder{}
	e := newEngine(s, remote, replication.WithRecorder(rec))
	ctx := context.Background()

	_, err := e.PushOne(ctx, frog())
	require.NoError(t, err)
	remote.Put("x", map[string]any{"name": 42})

	_, err = e.PullReplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.pushes)
	assert.Equal(t, 0, rec.pushErrs)
	assert.Equal(t, 1, rec.applied)
	assert.Equal(t, 1, rec.skipped)
	assert.NoError(t, rec.pullErr)
}
