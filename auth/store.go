package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/scy"
	_ "github.com/viant/scy/kms/blowfish"
)

// Accounts under which the local provider files its secrets.
const (
	accountAPIKey   = "api-key"
	accountUsername = "username"
	accountPassword = "password"
)

// SecretStore persists named secrets. Get returns an empty value without an
// error when the account holds nothing.
type SecretStore interface {
	Get(ctx context.Context, account string) (string, error)
	Set(ctx context.Context, account, value string) error
	Delete(ctx context.Context, account string) error
	Has(ctx context.Context, account string) (bool, error)
}

// ScyStore keeps secrets encrypted at rest, one file per account.
type ScyStore struct {
	secrets *scy.Service
	fs      afs.Service
	baseURL string
	key     string
}

// NewScyStore creates a store rooted at baseURL using the given kms key.
func NewScyStore(baseURL, key string) *ScyStore {
	return &ScyStore{
		secrets: scy.New(),
		fs:      afs.New(),
		baseURL: baseURL,
		key:     key,
	}
}

// DefaultStore roots the store in the user's home directory with the
// built-in blowfish key.
func DefaultStore() (*ScyStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewScyStore(filepath.Join(home, ".touchstone-mcp", "secrets"), "blowfish://default"), nil
}

func (s *ScyStore) resourceURL(account string) string {
	return url.Join(s.baseURL, account+".scy")
}

func (s *ScyStore) Get(ctx context.Context, account string) (string, error) {
	URL := s.resourceURL(account)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil || !exists {
		return "", err
	}
	secret, err := s.secrets.Load(ctx, scy.NewResource("", URL, s.key))
	if err != nil {
		return "", err
	}
	return secret.String(), nil
}

func (s *ScyStore) Set(ctx context.Context, account, value string) error {
	URL := s.resourceURL(account)
	return s.secrets.Store(ctx, scy.NewSecret(value, scy.NewResource("", URL, s.key)))
}

func (s *ScyStore) Delete(ctx context.Context, account string) error {
	URL := s.resourceURL(account)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil || !exists {
		return err
	}
	return s.fs.Delete(ctx, URL)
}

func (s *ScyStore) Has(ctx context.Context, account string) (bool, error) {
	return s.fs.Exists(ctx, s.resourceURL(account))
}

// SessionAccount names the secret holding the cloud session token for a
// server. The trailing /mcp segment is dropped so the token is shared by
// every endpoint of one deployment, and the URL is flattened into a name
// safe for file backed stores.
func SessionAccount(serverURL string) string {
	base := strings.TrimSuffix(serverURL, "/")
	base = strings.TrimSuffix(base, "/mcp")
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '-'
		}
	}, base)
	return "session-" + strings.Trim(sanitized, "-")
}
