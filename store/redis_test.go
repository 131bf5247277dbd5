package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client, NewRedisStore(client, time.Hour, nil)
}

func TestRedisStoreRecordAndGet(t *testing.T) {
	mr, _, store := setupRedisStore(t)
	ctx := context.Background()
	run := sampleRun("run-1", "2026-08-22T10:00:00Z")

	require.NoError(t, store.Record(ctx, run))

	assert.True(t, mr.Exists("compliance:run:run-1"), "run key not stored")
	assert.Greater(t, mr.TTL("compliance:run:run-1"), time.Duration(0), "run key has no TTL")

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "Complete a DPIA before launch.", got.FinalRecommendation)
	require.NotNil(t, got.Trace)
	assert.Len(t, got.Trace.Records, 1)
}

func TestRedisStoreRejectsDuplicate(t *testing.T) {
	_, client, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRun("run-1", "2026-08-22T10:00:00Z")))

	err := store.Record(ctx, sampleRun("run-1", "2026-08-22T11:00:00Z"))
	assert.ErrorIs(t, err, core.ErrDuplicateRun)

	ids, err := client.LRange(ctx, redisIndexKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Len(t, ids, 1, "duplicate must not be indexed twice")
}

func TestRedisStoreGetMissing(t *testing.T) {
	_, _, store := setupRedisStore(t)

	_, err := store.Get(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestRedisStoreListNewestFirst(t *testing.T) {
	_, _, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRun("run-1", "2026-08-22T10:00:00Z")))
	require.NoError(t, store.Record(ctx, sampleRun("run-2", "2026-08-22T11:00:00Z")))
	require.NoError(t, store.Record(ctx, sampleRun("run-3", "2026-08-22T12:00:00Z")))

	summaries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "run-3", summaries[0].RunID)
	assert.Equal(t, "run-1", summaries[2].RunID)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-3", limited[0].RunID)
	assert.Equal(t, "run-2", limited[1].RunID)
}

func TestRedisStoreListSkipsExpiredRuns(t *testing.T) {
	mr, _, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRun("run-1", "2026-08-22T10:00:00Z")))
	require.NoError(t, store.Record(ctx, sampleRun("run-2", "2026-08-22T11:00:00Z")))

	mr.Del(runKey("run-1"))

	summaries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "expired run should be skipped, not error")
	assert.Equal(t, "run-2", summaries[0].RunID)
}

func TestRedisStoreSurfacesTransportFailure(t *testing.T) {
	mr, _, store := setupRedisStore(t)
	ctx := context.Background()

	mr.SetError("connection reset")

	err := store.Record(ctx, sampleRun("run-1", "2026-08-22T10:00:00Z"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMaxRetriesExceeded, "transient failures should be retried before surfacing")
	assert.Contains(t, err.Error(), "redis record failed")

	mr.SetError("")
	require.NoError(t, store.Record(ctx, sampleRun("run-1", "2026-08-22T10:00:00Z")))
}

func TestRedisStoreAppliesRetentionTTL(t *testing.T) {
	mr, _, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRun("run-1", "2026-08-22T10:00:00Z")))

	assert.Equal(t, time.Hour, mr.TTL(runKey("run-1")))
	assert.Equal(t, time.Hour, mr.TTL(redisIndexKey))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "run-1")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}
