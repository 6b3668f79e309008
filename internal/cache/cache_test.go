package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Put(ctx, "t1", Answer{TaskType: "FIND_KEY", Key: 7}))

	got, ok, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, got.Key)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "old", Answer{TaskType: "DECRYPT_TEXT", Text: "HELLO"}))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Put(ctx, "new", Answer{TaskType: "DECRYPT_TEXT", Text: "WORLD"}))

	now = now.Add(45 * time.Second)
	_, ok, _ := store.Get(ctx, "old")
	assert.False(t, ok, "entry past its ttl must not be returned")
	_, ok, _ = store.Get(ctx, "new")
	assert.True(t, ok)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore(0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "t", Answer{TaskType: "FIND_KEY", Key: 1}))
	now = now.Add(1000 * time.Hour)

	_, ok, _ := store.Get(ctx, "t")
	assert.True(t, ok)
	removed, _ := store.PurgeExpired(ctx)
	assert.Zero(t, removed)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			_ = store.Put(ctx, id, Answer{TaskType: "FIND_KEY", Key: i})
			got, ok, _ := store.Get(ctx, id)
			assert.True(t, ok)
			assert.Equal(t, i, got.Key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := NewRedisStoreFromClient(client, time.Hour)

	answer := Answer{TaskType: "ENCRYPT_TEXT", Text: "KHOOR", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Put(ctx, "abc", answer))

	assert.True(t, mr.Exists("caesar:task:abc"))
	assert.Equal(t, time.Hour, mr.TTL("caesar:task:abc"))

	got, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, answer, got)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := NewRedisStoreFromClient(client, time.Minute)

	require.NoError(t, store.Put(ctx, "k", Answer{TaskType: "FIND_KEY", Key: 3}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRedisStore_NoTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := NewRedisStoreFromClient(client, 0)

	require.NoError(t, store.Put(ctx, "k", Answer{TaskType: "FIND_KEY", Key: 3}))
	assert.Equal(t, time.Duration(0), mr.TTL("caesar:task:k"))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStoreFromClient(client, time.Minute)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
}
