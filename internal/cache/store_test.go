package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
)

// =============================================================================
// 🧪 Store 测试
// =============================================================================

func setupTestRedis(t *testing.T, mutate ...func(*config.CacheConfig)) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.DefaultCacheConfig()
	cfg.Addr = mr.Addr()
	for _, m := range mutate {
		m(&cfg)
	}

	store, err := NewStore(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestNewStore_Unreachable(t *testing.T) {
	cfg := config.DefaultCacheConfig()
	cfg.Addr = "127.0.0.1:1"
	_, err := NewStore(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestStore_ResultRoundTrip(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.GetResult(ctx, "fal-ai/flux/dev", "h1")
	assert.True(t, IsMiss(err))

	payload := map[string]any{"images": []any{map[string]any{"url": "https://cdn/a.png"}}}
	require.NoError(t, store.PutResult(ctx, "fal-ai/flux/dev", "h1", payload))

	got, err := store.GetResult(ctx, "fal-ai/flux/dev", "h1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// 不同端点互不影响
	_, err = store.GetResult(ctx, "fal-ai/veo3.1", "h1")
	assert.True(t, IsMiss(err))
}

func TestStore_ResultTTL(t *testing.T) {
	mr, store := setupTestRedis(t, func(c *config.CacheConfig) { c.ResultTTL = time.Minute })
	ctx := context.Background()

	require.NoError(t, store.PutResult(ctx, "e", "h", "done"))
	key := store.resultKey("e", "h")
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	_, err := store.GetResult(ctx, "e", "h")
	assert.True(t, IsMiss(err))
}

func TestStore_KeyPrefix(t *testing.T) {
	mr, store := setupTestRedis(t, func(c *config.CacheConfig) { c.KeyPrefix = "test:" })
	require.NoError(t, store.PutResult(context.Background(), "e", "h", 1))
	assert.True(t, mr.Exists("test:result:e:h"))
}

func TestStore_CorruptResult(t *testing.T) {
	mr, store := setupTestRedis(t)
	require.NoError(t, mr.Set(store.resultKey("e", "h"), "{not json"))

	_, err := store.GetResult(context.Background(), "e", "h")
	require.Error(t, err)
	assert.False(t, IsMiss(err))
}

func TestStore_History(t *testing.T) {
	_, store := setupTestRedis(t, func(c *config.CacheConfig) { c.HistorySize = 3 })
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordSubmission(ctx, JobRecord{
			Endpoint:    "fal-ai/veo3.1",
			Handle:      fmt.Sprintf("h%d", i),
			SubmittedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	jobs, err := store.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "h4", jobs[0].Handle)
	assert.Equal(t, "h2", jobs[2].Handle)
	assert.True(t, jobs[0].SubmittedAt.Equal(base.Add(4*time.Second)))

	jobs, err = store.RecentJobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	jobs, err = store.RecentJobs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStore_MalformedHistoryEntrySkipped(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.RecordSubmission(ctx, JobRecord{Endpoint: "e", Handle: "ok"}))
	_, err := mr.Lpush(store.historyKey(), "garbage")
	require.NoError(t, err)

	jobs, err := store.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "ok", jobs[0].Handle)
}

func TestStore_Closed(t *testing.T) {
	_, store := setupTestRedis(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err := store.GetResult(ctx, "e", "h")
	assert.Error(t, err)
	assert.Error(t, store.PutResult(ctx, "e", "h", 1))
	assert.Error(t, store.RecordSubmission(ctx, JobRecord{}))
	_, err = store.RecentJobs(ctx, 1)
	assert.Error(t, err)
}
