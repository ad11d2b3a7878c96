package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisnetinc/touchstone-mcp/errs"
	"github.com/aegisnetinc/touchstone-mcp/session"
	"github.com/aegisnetinc/touchstone-mcp/touchstone"
)

type memorySessionStore struct {
	users    map[string]*session.User
	sessions map[string]*session.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{users: map[string]*session.User{}, sessions: map[string]*session.Session{}}
}

func (m *memorySessionStore) FindOrCreateUser(_ context.Context, touchstoneUser string) (*session.User, error) {
	if user, ok := m.users[touchstoneUser]; ok {
		return user, nil
	}
	user := &session.User{ID: uuid.New().String(), TouchstoneUser: touchstoneUser, CreatedAt: time.Now()}
	m.users[touchstoneUser] = user
	return user, nil
}

func (m *memorySessionStore) RecordLogin(_ context.Context, user *session.User) error {
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

func (m *memorySessionStore) Create(_ context.Context, userID, token, apiKeyEnc string, ttl time.Duration) (*session.Session, error) {
	now := time.Now()
	sess := &session.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		APIKeyEnc: apiKeyEnc,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.sessions[token] = sess
	return sess, nil
}

func (m *memorySessionStore) FindByToken(_ context.Context, token string) (*session.Session, error) {
	sess, ok := m.sessions[token]
	if !ok || sess.Expired(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

func (m *memorySessionStore) DeleteByToken(_ context.Context, token string) (bool, error) {
	if _, ok := m.sessions[token]; !ok {
		return false, nil
	}
	delete(m.sessions, token)
	return true, nil
}

func newAuthServiceForTest(t *testing.T) (*AuthService, *memorySessionStore, *session.Cipher) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/touchstone/api/authenticate", r.URL.Path)
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.Nil(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"API-Key": "cloud-key"})
	}))
	t.Cleanup(upstream.Close)

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.Nil(t, err)
	cipher, err := session.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.Nil(t, err)

	store := newMemorySessionStore()
	return NewAuthService(touchstone.New(upstream.URL), store, cipher, time.Hour), store, cipher
}

func TestAuthServiceLogin(t *testing.T) {
	authService, store, cipher := newAuthServiceForTest(t)
	ctx := context.Background()

	result, err := authService.Login(ctx, "dev@example.org", "good")
	require.Nil(t, err)
	assert.Len(t, result.SessionToken, 64, "token is 32 random bytes hex encoded")
	assert.True(t, result.ExpiresAt.After(time.Now()))

	sess, err := store.FindByToken(ctx, result.SessionToken)
	require.Nil(t, err)
	require.NotNil(t, sess)
	assert.NotEqual(t, "cloud-key", sess.APIKeyEnc, "api key is stored encrypted")
	plaintext, err := cipher.Decrypt(sess.APIKeyEnc)
	require.Nil(t, err)
	assert.Equal(t, "cloud-key", plaintext)

	user := store.users["dev@example.org"]
	require.NotNil(t, user)
	assert.NotNil(t, user.LastLoginAt)
}

func TestAuthServiceLoginRejected(t *testing.T) {
	authService, store, _ := newAuthServiceForTest(t)
	_, err := authService.Login(context.Background(), "dev@example.org", "bad")
	assert.True(t, errs.Is(err, errs.AuthenticationFailed))
	assert.Empty(t, store.sessions)
}

func TestAuthServiceLogoutAndStatus(t *testing.T) {
	authService, _, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	result, err := authService.Login(ctx, "dev@example.org", "good")
	require.Nil(t, err)

	status, err := authService.Status(ctx, result.SessionToken)
	require.Nil(t, err)
	assert.True(t, status.Authenticated)

	deleted, err := authService.Logout(ctx, result.SessionToken)
	require.Nil(t, err)
	assert.True(t, deleted)

	status, err = authService.Status(ctx, result.SessionToken)
	require.Nil(t, err)
	assert.False(t, status.Authenticated)

	deleted, err = authService.Logout(ctx, result.SessionToken)
	require.Nil(t, err)
	assert.False(t, deleted, "second logout is a no-op")
}

func TestAuthRoutes(t *testing.T) {
	authService, _, _ := newAuthServiceForTest(t)
	mux := http.NewServeMux()
	authService.Register(mux)
	app := httptest.NewServer(mux)
	defer app.Close()

	body, _ := json.Marshal(map[string]string{"username": "dev@example.org", "password": "good"})
	response, err := http.Post(app.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.Nil(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
	login := &LoginResult{}
	require.Nil(t, json.NewDecoder(response.Body).Decode(login))
	assert.NotEmpty(t, login.SessionToken)

	request, _ := http.NewRequest(http.MethodGet, app.URL+"/auth/status", nil)
	request.Header.Set("Authorization", "Bearer "+login.SessionToken)
	response, err = http.DefaultClient.Do(request)
	require.Nil(t, err)
	defer response.Body.Close()
	status := &SessionStatus{}
	require.Nil(t, json.NewDecoder(response.Body).Decode(status))
	assert.True(t, status.Authenticated)

	bad, _ := json.Marshal(map[string]string{"username": "dev@example.org", "password": "bad"})
	response, err = http.Post(app.URL+"/auth/login", "application/json", bytes.NewReader(bad))
	require.Nil(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	request, _ = http.NewRequest(http.MethodPost, app.URL+"/auth/logout", nil)
	request.Header.Set("Authorization", "Bearer "+login.SessionToken)
	response, err = http.DefaultClient.Do(request)
	require.Nil(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
	var logout map[string]bool
	require.Nil(t, json.NewDecoder(response.Body).Decode(&logout))
	assert.True(t, logout["loggedOut"])
}
