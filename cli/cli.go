// Package cli wires the touchstone-mcp commands: the stdio and HTTP servers,
// the stdio proxy and the credential management commands.
package cli

import (
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/analytics"
	"github.com/aegisnetinc/touchstone-mcp/auth"
	"github.com/aegisnetinc/touchstone-mcp/internal/config"
	"github.com/aegisnetinc/touchstone-mcp/internal/logging"
	"github.com/aegisnetinc/touchstone-mcp/touchstone"
)

// Options declares the command tree.
type Options struct {
	Serve  ServeCommand  `command:"serve" description:"run the MCP server on stdio using local credentials"`
	HTTP   HTTPCommand   `command:"http" description:"run the cloud MCP server over streamable HTTP"`
	Proxy  ProxyCommand  `command:"proxy" description:"bridge stdio to a cloud deployment"`
	Login  LoginCommand  `command:"login" description:"authenticate against Touchstone and store credentials"`
	Logout LogoutCommand `command:"logout" description:"remove stored credentials"`
	Status StatusCommand `command:"status" description:"show authentication status"`
}

// Run parses args and executes the selected command.
func Run(args []string) error {
	options := &Options{}
	_, err := flags.ParseArgs(options, args)
	return err
}

// runtime bundles the pieces every command starts from.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *touchstone.Client
	tracker analytics.Tracker
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		client:  touchstone.New(cfg.TouchstoneURL, touchstone.WithLogger(logger)),
		tracker: analytics.New(cfg.PostHogAPIKey, cfg.TelemetryEnabled),
	}, nil
}

func (r *runtime) close() {
	_ = r.tracker.Close()
	_ = r.logger.Sync()
}

func (r *runtime) secretStore() (*auth.ScyStore, error) {
	if r.cfg.SecretsDir != "" {
		return auth.NewScyStore(r.cfg.SecretsDir, "blowfish://default"), nil
	}
	return auth.DefaultStore()
}
