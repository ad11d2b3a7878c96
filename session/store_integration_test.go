package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The store tests run against a live redis addressed by REDIS_URL and are
// skipped otherwise.
func newIntegrationStore(t *testing.T) *Store {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := NewClient(redisURL)
	require.Nil(t, err)
	require.Nil(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewStore(client)
}

func TestStoreSessionLifecycle(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	user, err := store.FindOrCreateUser(ctx, "lifecycle@example.org")
	require.Nil(t, err)
	again, err := store.FindOrCreateUser(ctx, "lifecycle@example.org")
	require.Nil(t, err)
	assert.Equal(t, user.ID, again.ID)

	sess, err := store.Create(ctx, user.ID, "token-lifecycle", "encrypted", time.Hour)
	require.Nil(t, err)
	assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))

	found, err := store.FindByToken(ctx, "token-lifecycle")
	require.Nil(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.UserID)

	require.Nil(t, store.UpdateLastUsed(ctx, "token-lifecycle"))

	sessions, err := store.FindByUser(ctx, user.ID)
	require.Nil(t, err)
	assert.NotEmpty(t, sessions)

	deleted, err := store.DeleteByToken(ctx, "token-lifecycle")
	require.Nil(t, err)
	assert.True(t, deleted)

	missing, err := store.FindByToken(ctx, "token-lifecycle")
	require.Nil(t, err)
	assert.Nil(t, missing)
}

func TestStoreExpiredSessionIsGone(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	user, err := store.FindOrCreateUser(ctx, "expiry@example.org")
	require.Nil(t, err)
	_, err = store.Create(ctx, user.ID, "token-expiry", "encrypted", 50*time.Millisecond)
	require.Nil(t, err)

	time.Sleep(100 * time.Millisecond)
	pruned, err := store.DeleteExpired(ctx)
	require.Nil(t, err)
	assert.GreaterOrEqual(t, pruned, 1)

	found, err := store.FindByToken(ctx, "token-expiry")
	require.Nil(t, err)
	assert.Nil(t, found)
}
