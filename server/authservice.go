package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/analytics"
	"github.com/aegisnetinc/touchstone-mcp/errs"
	"github.com/aegisnetinc/touchstone-mcp/session"
	"github.com/aegisnetinc/touchstone-mcp/touchstone"
)

// Encrypter seals API keys before they reach the session store.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// SessionStore is the slice of the session store the login flow needs.
type SessionStore interface {
	FindOrCreateUser(ctx context.Context, touchstoneUser string) (*session.User, error)
	RecordLogin(ctx context.Context, user *session.User) error
	Create(ctx context.Context, userID, token, apiKeyEnc string, ttl time.Duration) (*session.Session, error)
	FindByToken(ctx context.Context, token string) (*session.Session, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
}

// AuthService implements the cloud login flow: it exchanges Touchstone
// credentials for an opaque session token whose session carries the
// encrypted API key.
type AuthService struct {
	client  *touchstone.Client
	store   SessionStore
	cipher  Encrypter
	ttl     time.Duration
	tracker analytics.Tracker
	logger  *zap.Logger
}

// AuthOption customizes the service.
type AuthOption func(*AuthService)

// WithAuthTracker attaches an analytics tracker.
func WithAuthTracker(tracker analytics.Tracker) AuthOption {
	return func(a *AuthService) {
		a.tracker = tracker
	}
}

// WithAuthLogger attaches a logger.
func WithAuthLogger(logger *zap.Logger) AuthOption {
	return func(a *AuthService) {
		a.logger = logger
	}
}

// NewAuthService creates the login service; ttl bounds session lifetime.
func NewAuthService(client *touchstone.Client, store SessionStore, cipher Encrypter, ttl time.Duration, options ...AuthOption) *AuthService {
	ret := &AuthService{
		client:  client,
		store:   store,
		cipher:  cipher,
		ttl:     ttl,
		tracker: analytics.Nop{},
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// LoginResult is returned to the CLI after a successful cloud login.
type LoginResult struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         string    `json:"user"`
}

// newSessionToken mints an opaque 256 bit token.
func newSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Login validates Touchstone credentials and creates a session holding the
// encrypted API key.
func (a *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	apiKey, err := a.client.Authenticate(ctx, username, password)
	if err != nil {
		a.tracker.Track(analytics.EventAuthFailure, map[string]interface{}{
			"error_code": string(errorCode(err)),
		})
		return nil, err
	}
	user, err := a.store.FindOrCreateUser(ctx, username)
	if err != nil {
		return nil, err
	}
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	sealed, err := a.cipher.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}
	sess, err := a.store.Create(ctx, user.ID, token, sealed, a.ttl)
	if err != nil {
		return nil, err
	}
	if err = a.store.RecordLogin(ctx, user); err != nil {
		a.logger.Warn("failed to record login time", zap.Error(err))
	}
	a.tracker.Track(analytics.EventAuthSuccess, map[string]interface{}{"mode": "cloud"})
	a.logger.Info("session created", zap.String("user", username))
	return &LoginResult{SessionToken: sess.Token, ExpiresAt: sess.ExpiresAt, User: username}, nil
}

// Logout deletes the session; unknown tokens report false.
func (a *AuthService) Logout(ctx context.Context, token string) (bool, error) {
	return a.store.DeleteByToken(ctx, token)
}

// SessionStatus describes a live session.
type SessionStatus struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expiresAt,omitempty"`
	LastUsedAt    time.Time `json:"lastUsedAt,omitempty"`
}

// Status resolves a token without touching its activity stamp.
func (a *AuthService) Status(ctx context.Context, token string) (*SessionStatus, error) {
	sess, err := a.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return &SessionStatus{}, nil
	}
	return &SessionStatus{Authenticated: true, ExpiresAt: sess.ExpiresAt, LastUsedAt: sess.LastUsedAt}, nil
}

// Register mounts the auth REST routes.
func (a *AuthService) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", a.handleLogin)
	mux.HandleFunc("/auth/logout", a.handleLogout)
	mux.HandleFunc("/auth/status", a.handleStatus)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthService) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	request := &loginRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil || request.Username == "" || request.Password == "" {
		writeError(w, http.StatusBadRequest, errs.New(errs.Unknown, "username and password are required"))
		return
	}
	result, err := a.Login(r.Context(), request.Username, request.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errs.Is(err, errs.AuthenticationFailed) {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *AuthService) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, errs.NewNotAuthenticated())
		return
	}
	deleted, err := a.Logout(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"loggedOut": deleted})
}

func (a *AuthService) handleStatus(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, &SessionStatus{})
		return
	}
	status, err := a.Status(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errs.Format(err))
}
