package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisnetinc/touchstone-mcp/errs"
	"github.com/aegisnetinc/touchstone-mcp/session"
)

type fakeSessionStore struct {
	sessions map[string]*session.Session
	touched  []string
}

func (f *fakeSessionStore) FindByToken(_ context.Context, token string) (*session.Session, error) {
	sess, ok := f.sessions[token]
	if !ok || sess.Expired(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

func (f *fakeSessionStore) UpdateLastUsed(_ context.Context, token string) error {
	f.touched = append(f.touched, token)
	return nil
}

func newSessionCipher(t *testing.T) *session.Cipher {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.Nil(t, err)
	cipher, err := session.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.Nil(t, err)
	return cipher
}

func TestSessionProviderAPIKey(t *testing.T) {
	cipher := newSessionCipher(t)
	sealed, err := cipher.Encrypt("api-key-cloud")
	require.Nil(t, err)

	store := &fakeSessionStore{sessions: map[string]*session.Session{
		"live-token": {
			Token:     "live-token",
			UserID:    "user-1",
			APIKeyEnc: sealed,
			ExpiresAt: time.Now().Add(time.Hour),
		},
		"stale-token": {
			Token:     "stale-token",
			UserID:    "user-1",
			APIKeyEnc: sealed,
			ExpiresAt: time.Now().Add(-time.Hour),
		},
	}}
	provider := NewSessionProvider(store, cipher)
	ctx := context.Background()

	testCases := []struct {
		description string
		authCtx     *Context
		expectKey   string
		expectCode  errs.Code
	}{
		{
			description: "live token resolves",
			authCtx:     &Context{SessionToken: "live-token"},
			expectKey:   "api-key-cloud",
		},
		{
			description: "missing token is not authenticated",
			authCtx:     &Context{},
			expectCode:  errs.NotAuthenticated,
		},
		{
			description: "unknown token is not authenticated",
			authCtx:     &Context{SessionToken: "nope"},
			expectCode:  errs.NotAuthenticated,
		},
		{
			description: "expired token is not authenticated",
			authCtx:     &Context{SessionToken: "stale-token"},
			expectCode:  errs.NotAuthenticated,
		},
	}

	for _, testCase := range testCases {
		apiKey, err := provider.APIKey(ctx, testCase.authCtx)
		if testCase.expectCode != "" {
			assert.True(t, errs.Is(err, testCase.expectCode), testCase.description)
			continue
		}
		require.Nil(t, err, testCase.description)
		assert.Equal(t, testCase.expectKey, apiKey, testCase.description)
	}
	assert.Equal(t, []string{"live-token"}, store.touched, "only successful lookups stamp activity")
}

func TestSessionProviderTokenFromContext(t *testing.T) {
	cipher := newSessionCipher(t)
	sealed, err := cipher.Encrypt("api-key-ctx")
	require.Nil(t, err)
	store := &fakeSessionStore{sessions: map[string]*session.Session{
		"ctx-token": {Token: "ctx-token", APIKeyEnc: sealed, ExpiresAt: time.Now().Add(time.Hour)},
	}}
	provider := NewSessionProvider(store, cipher)

	ctx := WithSessionToken(context.Background(), "ctx-token")
	apiKey, err := provider.APIKey(ctx, nil)
	require.Nil(t, err)
	assert.Equal(t, "api-key-ctx", apiKey)

	authenticated, err := provider.IsAuthenticated(ctx, nil)
	require.Nil(t, err)
	assert.True(t, authenticated)

	authenticated, err = provider.IsAuthenticated(context.Background(), nil)
	require.Nil(t, err)
	assert.False(t, authenticated)
}

func TestSessionProviderBadCiphertext(t *testing.T) {
	cipher := newSessionCipher(t)
	store := &fakeSessionStore{sessions: map[string]*session.Session{
		"bad-token": {Token: "bad-token", APIKeyEnc: "not-a-ciphertext", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	provider := NewSessionProvider(store, cipher)

	_, err := provider.APIKey(context.Background(), &Context{SessionToken: "bad-token"})
	assert.True(t, errs.Is(err, errs.NotAuthenticated))
}
