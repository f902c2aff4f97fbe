package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stream-queue-system/pkg/models"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSessionStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := &SessionInfo{
		UserID:    "user-1",
		Email:     "fan@example.com",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, store.StoreSession(ctx, "s1", session))
	assert.True(t, mr.Exists("session:s1"))
	assert.Greater(t, mr.TTL("session:s1"), time.Duration(0))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "fan@example.com", got.Email)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	err := store.StoreSession(ctx, "old", &SessionInfo{UserID: "u", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)

	require.NoError(t, store.StoreSession(ctx, "s2", &SessionInfo{UserID: "u", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err = store.GetSession(ctx, "s2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type countingResolver struct {
	calls int
	meta  *models.Metadata
	err   error
}

func (r *countingResolver) Resolve(ctx context.Context, videoID string) (*models.Metadata, error) {
	r.calls++
	return r.meta, r.err
}

func TestMetadataCache(t *testing.T) {
	mr, client := newTestClient(t)
	inner := &countingResolver{meta: &models.Metadata{
		Title:      "Song",
		Thumbnails: []models.Thumbnail{{URL: "http://img/1", Width: 120, Height: 90}},
	}}
	cache := NewMetadataCache(client, inner, time.Hour)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Song", first.Title)
	assert.True(t, mr.Exists("metadata:youtube:dQw4w9WgXcQ"))

	second, err := cache.Resolve(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	mr.FastForward(2 * time.Hour)
	_, err = cache.Resolve(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestMetadataCacheDoesNotStoreFailures(t *testing.T) {
	mr, client := newTestClient(t)
	inner := &countingResolver{err: errors.New("quota exceeded")}
	cache := NewMetadataCache(client, inner, time.Hour)

	_, err := cache.Resolve(context.Background(), "abcdefghijk")
	assert.Error(t, err)
	assert.False(t, mr.Exists("metadata:youtube:abcdefghijk"))
}

func TestMetadataCacheSurvivesRedisOutage(t *testing.T) {
	mr, client := newTestClient(t)
	inner := &countingResolver{meta: &models.Metadata{Title: "Song"}}
	cache := NewMetadataCache(client, inner, time.Hour)

	mr.SetError("connection refused")

	meta, err := cache.Resolve(context.Background(), "abcdefghijk")
	require.NoError(t, err)
	assert.Equal(t, "Song", meta.Title)
}
