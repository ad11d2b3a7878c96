package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/auth"
	"github.com/aegisnetinc/touchstone-mcp/server"
)

// ServeCommand runs the MCP server on stdio, resolving the API key from the
// local secret store.
type ServeCommand struct{}

func (c *ServeCommand) Execute(_ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	store, err := rt.secretStore()
	if err != nil {
		return err
	}
	provider := auth.NewLocal(store, rt.client, auth.WithLocalLogger(rt.logger))
	service := server.New(rt.client, provider,
		server.WithTracker(rt.tracker),
		server.WithLogger(rt.logger),
	)

	ctx := context.Background()
	srv, err := service.Stdio(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("serving on stdio", zap.String("mode", "local"))
	return srv.ListenAndServe()
}
