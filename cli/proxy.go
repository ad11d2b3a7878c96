package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/proxy"
)

// ProxyCommand bridges a stdio MCP client to a cloud deployment, attaching
// the stored session token to every forwarded request.
type ProxyCommand struct {
	URL string `short:"u" long:"url" description:"cloud mcp url, overrides TS_MCP_CLOUD_URL"`
}

func (c *ProxyCommand) Execute(_ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	serverURL := c.URL
	if serverURL == "" {
		serverURL = rt.cfg.CloudURL
	}
	store, err := rt.secretStore()
	if err != nil {
		return err
	}
	source := proxy.NewSecretTokenSource(store, serverURL)

	ctx := context.Background()
	bridge, err := proxy.New(ctx, serverURL, source, proxy.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	rt.logger.Info("proxying stdio", zap.String("url", serverURL))
	return bridge.Run(ctx)
}
