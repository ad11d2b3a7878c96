package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/errs"
	"github.com/aegisnetinc/touchstone-mcp/touchstone"
)

// Local resolves API keys from the developer's secret store. When username
// and password were stored at login it can also refresh an expired key
// without user interaction.
type Local struct {
	store  SecretStore
	client *touchstone.Client
	logger *zap.Logger
}

// LocalOption customizes the provider.
type LocalOption func(*Local)

// WithLocalLogger attaches a logger.
func WithLocalLogger(logger *zap.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// NewLocal creates a local provider backed by the given secret store.
func NewLocal(store SecretStore, client *touchstone.Client, options ...LocalOption) *Local {
	ret := &Local{store: store, client: client, logger: zap.NewNop()}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// APIKey returns the stored key or NOT_AUTHENTICATED.
func (l *Local) APIKey(ctx context.Context, _ *Context) (string, error) {
	apiKey, err := l.store.Get(ctx, accountAPIKey)
	if err != nil {
		return "", err
	}
	if apiKey == "" {
		return "", errs.NewNotAuthenticated()
	}
	return apiKey, nil
}

// IsAuthenticated reports whether an API key is stored.
func (l *Local) IsAuthenticated(ctx context.Context, _ *Context) (bool, error) {
	return l.store.Has(ctx, accountAPIKey)
}

// Login authenticates against Touchstone, verifies the minted key and
// stores it together with the credentials used, enabling later refresh.
func (l *Local) Login(ctx context.Context, username, password string) error {
	apiKey, err := l.client.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if err = l.client.ValidateAPIKey(ctx, apiKey); err != nil {
		return err
	}
	if err = l.store.Set(ctx, accountAPIKey, apiKey); err != nil {
		return err
	}
	if err = l.store.Set(ctx, accountUsername, username); err != nil {
		return err
	}
	return l.store.Set(ctx, accountPassword, password)
}

// Logout removes the API key and the stored credentials.
func (l *Local) Logout(ctx context.Context) error {
	for _, account := range []string{accountAPIKey, accountUsername, accountPassword} {
		if err := l.store.Delete(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

// RefreshAPIKey re-authenticates with stored credentials. Without stored
// credentials it returns an empty key and no error.
func (l *Local) RefreshAPIKey(ctx context.Context) (string, error) {
	username, err := l.store.Get(ctx, accountUsername)
	if err != nil {
		return "", err
	}
	password, err := l.store.Get(ctx, accountPassword)
	if err != nil {
		return "", err
	}
	if username == "" || password == "" {
		return "", nil
	}
	l.logger.Info("refreshing expired api key", zap.String("username", username))
	apiKey, err := l.client.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	if err = l.store.Set(ctx, accountAPIKey, apiKey); err != nil {
		return "", err
	}
	return apiKey, nil
}

// Email returns the stored account name, if any.
func (l *Local) Email(ctx context.Context) (string, error) {
	return l.store.Get(ctx, accountUsername)
}

// Status describes what the local store holds.
type Status struct {
	HasAPIKey      bool
	HasCredentials bool
	Username       string
}

// Status reports the stored state for the status command.
func (l *Local) Status(ctx context.Context) (*Status, error) {
	hasKey, err := l.store.Has(ctx, accountAPIKey)
	if err != nil {
		return nil, err
	}
	username, err := l.store.Get(ctx, accountUsername)
	if err != nil {
		return nil, err
	}
	hasPassword, err := l.store.Has(ctx, accountPassword)
	if err != nil {
		return nil, err
	}
	return &Status{
		HasAPIKey:      hasKey,
		HasCredentials: username != "" && hasPassword,
		Username:       username,
	}, nil
}
