package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/pkg/adapters/redis"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSessionStore_Contract(t *testing.T) {
	_, client := setupRedis(t)
	ports.RunSessionStoreContract(t, redis.NewSessionStore(client))
}

func TestRedisRunStore_Contract(t *testing.T) {
	_, client := setupRedis(t)
	ports.RunRunStoreContract(t, redis.NewRunStore(client))
}

func TestRedisSessionStore_TTLExpiration(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := redis.NewSessionStore(client, redis.WithTTL(time.Second), redis.WithClock(clock))

	require.NoError(t, store.Save(ctx, &domain.Session{ID: "session-ttl"}))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	// Key expiration is driven by miniredis, index pruning by the clock.
	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisRunStore_SkipsExpiredRecords(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	store := redis.NewRunStore(client, redis.WithPrefix("test:"))

	rec := domain.RunRecord{RunID: "run_1_0", ProjectID: "p1", Status: domain.RunSucceeded}
	require.NoError(t, store.Save(ctx, rec))
	assert.True(t, mr.Exists("test:run:run_1_0"))

	// Simulate an eviction that left the index entry behind.
	mr.Del("test:run:run_1_0")

	runs, err := store.List(ctx, "p1", domain.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisStores_Prefix(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	store := redis.NewSessionStore(client, redis.WithPrefix("custom:"))
	require.NoError(t, store.Save(ctx, &domain.Session{ID: "s1"}))

	assert.True(t, mr.Exists("custom:session:s1"))
	assert.True(t, mr.Exists("custom:session:index"))
}
