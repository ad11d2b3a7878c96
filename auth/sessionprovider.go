package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/errs"
	"github.com/aegisnetinc/touchstone-mcp/session"
)

// SessionStore is the slice of the session store the provider needs.
type SessionStore interface {
	FindByToken(ctx context.Context, token string) (*session.Session, error)
	UpdateLastUsed(ctx context.Context, token string) error
}

// Decrypter opens API keys sealed by the session cipher.
type Decrypter interface {
	Decrypt(encoded string) (string, error)
}

// SessionProvider resolves cloud bearer tokens to API keys. A missing,
// unknown or expired token always reads as not authenticated.
type SessionProvider struct {
	sessions  SessionStore
	decrypter Decrypter
	logger    *zap.Logger
}

// SessionProviderOption customizes the provider.
type SessionProviderOption func(*SessionProvider)

// WithSessionLogger attaches a logger.
func WithSessionLogger(logger *zap.Logger) SessionProviderOption {
	return func(p *SessionProvider) {
		p.logger = logger
	}
}

// NewSessionProvider creates a provider over the given session store.
func NewSessionProvider(sessions SessionStore, decrypter Decrypter, options ...SessionProviderOption) *SessionProvider {
	ret := &SessionProvider{sessions: sessions, decrypter: decrypter, logger: zap.NewNop()}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (p *SessionProvider) session(ctx context.Context, authCtx *Context) (*session.Session, error) {
	token := ""
	if authCtx != nil {
		token = authCtx.SessionToken
	}
	if token == "" {
		token = SessionToken(ctx)
	}
	if token == "" {
		return nil, errs.NewNotAuthenticated()
	}
	sess, err := p.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errs.NewNotAuthenticated()
	}
	return sess, nil
}

// APIKey resolves and decrypts the caller's API key, stamping session
// activity on the way.
func (p *SessionProvider) APIKey(ctx context.Context, authCtx *Context) (string, error) {
	sess, err := p.session(ctx, authCtx)
	if err != nil {
		return "", err
	}
	if err = p.sessions.UpdateLastUsed(ctx, sess.Token); err != nil {
		p.logger.Warn("failed to stamp session activity", zap.Error(err))
	}
	apiKey, err := p.decrypter.Decrypt(sess.APIKeyEnc)
	if err != nil {
		p.logger.Error("failed to decrypt session api key", zap.Error(err))
		return "", errs.NewNotAuthenticated()
	}
	return apiKey, nil
}

// IsAuthenticated reports whether the caller holds a live session.
func (p *SessionProvider) IsAuthenticated(ctx context.Context, authCtx *Context) (bool, error) {
	_, err := p.session(ctx, authCtx)
	if err != nil {
		if errs.Is(err, errs.NotAuthenticated) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
