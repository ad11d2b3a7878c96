// Package auth resolves Touchstone API keys for tool calls. Two providers
// exist: Local reads the developer's secret store, SessionProvider resolves
// cloud bearer tokens against the session store.
package auth

import "context"

// Context carries per-call authentication state.
type Context struct {
	// SessionToken is the bearer token of a cloud caller, empty in local mode.
	SessionToken string
}

// Provider resolves the API key used for upstream Touchstone calls.
type Provider interface {
	// APIKey returns the key for the calling identity or a coded error.
	APIKey(ctx context.Context, authCtx *Context) (string, error)
	// IsAuthenticated reports whether credentials are present without
	// validating them upstream.
	IsAuthenticated(ctx context.Context, authCtx *Context) (bool, error)
}

// Refresher is an optional Provider capability: re-authenticate with stored
// credentials to mint a fresh API key. An empty key without an error means
// no credentials are stored and no refresh is possible.
type Refresher interface {
	RefreshAPIKey(ctx context.Context) (string, error)
}

// Identity is an optional Provider capability exposing the account name.
type Identity interface {
	Email(ctx context.Context) (string, error)
}

type contextKey string

const sessionTokenKey contextKey = "sessionToken"

// WithSessionToken stores a bearer token in the context.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey, token)
}

// SessionToken returns the bearer token stored in the context, if any.
func SessionToken(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}
