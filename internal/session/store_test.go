package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/redis"
)

func TestMemoryStore_CopiesInAndOut(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	s := suggested(2)
	require.NoError(t, store.Put(ctx, s))
	s.List.Items[0].Description = "mutated after put"

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Requisito numero 1 do termo", got.List.Items[0].Description)

	got.List.Items[1].Description = "mutated after get"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Requisito numero 2 do termo", again.List.Items[1].Description)
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	now := clock
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, suggested(1)))
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	now = clock.Add(2 * time.Hour)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ReadsKeepSessionAlive(t *testing.T) {
	tests := []struct {
		name   string
		reads  []time.Duration
		check  time.Duration
		wantOK bool
	}{
		{name: "no reads", check: 90 * time.Minute, wantOK: false},
		{name: "read halfway", reads: []time.Duration{40 * time.Minute}, check: 90 * time.Minute, wantOK: true},
		{name: "reads chained", reads: []time.Duration{50 * time.Minute, 100 * time.Minute}, check: 150 * time.Minute, wantOK: true},
		{name: "idle after last read", reads: []time.Duration{30 * time.Minute}, check: 100 * time.Minute, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(time.Hour)
			defer store.Close()
			now := clock
			store.now = func() time.Time { return now }
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, suggested(1)))
			for _, at := range tt.reads {
				now = clock.Add(at)
				_, err := store.Get(ctx, "s1")
				require.NoError(t, err)
			}

			now = clock.Add(tt.check)
			_, err := store.Get(ctx, "s1")
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
			}
		})
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, suggested(1)))
	require.NoError(t, store.Delete(ctx, "s1"))
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "etp:session:"})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t, 30*time.Minute)
	ctx := context.Background()

	s := suggested(3)
	require.NoError(t, store.Put(ctx, s))
	assert.True(t, mr.Exists("etp:session:s1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("etp:session:s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.State, got.State)
	assert.Equal(t, s.Necessity, got.Necessity)
	assert.Equal(t, s.List, got.List)
	assert.True(t, s.UpdatedAt.Equal(got.UpdatedAt))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisStore_ExpiresIdleSessions(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, suggested(1)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestRedisStore_GetRefreshesIdleTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, suggested(1)))
	mr.FastForward(40 * time.Second)
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("etp:session:s1"))

	mr.FastForward(40 * time.Second)
	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)
}

func TestRedisStore_CountsSessions(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, id := range []string{"a", "b", "c"} {
		s := suggested(1)
		s.ID = id
		require.NoError(t, store.Put(ctx, s))
	}
	require.NoError(t, store.Delete(ctx, "b"))

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, suggested(1)))
	require.NoError(t, store.Delete(ctx, "s1"))
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestLockTable_ReleasesEntries(t *testing.T) {
	locks := newLockTable()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	assert.Equal(t, 2, locks.len())
	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.len())
}
