// Package server exposes the Touchstone tools and prompts as an MCP server
// over stdio or streamable HTTP.
package server

import (
	"context"
	"time"

	"github.com/viant/jsonrpc/transport"
	stdiosrv "github.com/viant/jsonrpc/transport/server/stdio"
	protoclient "github.com/viant/mcp-protocol/client"
	protologger "github.com/viant/mcp-protocol/logger"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"
	mcpserver "github.com/viant/mcp/server"
	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/analytics"
	"github.com/aegisnetinc/touchstone-mcp/auth"
	"github.com/aegisnetinc/touchstone-mcp/touchstone"
)

const (
	// Name and Version identify the server to MCP clients.
	Name    = "touchstone-mcp"
	Version = "0.1.0"
)

// Service owns the shared tool dependencies; each MCP connection gets a
// lightweight handler over it.
type Service struct {
	client         *touchstone.Client
	provider       auth.Provider
	throttle       *touchstone.Throttle
	tracker        analytics.Tracker
	logger         *zap.Logger
	statusInterval time.Duration
	detailInterval time.Duration
}

// Option customizes the service.
type Option func(*Service)

// WithTracker attaches an analytics tracker.
func WithTracker(tracker analytics.Tracker) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIntervals overrides the throttle floors.
func WithIntervals(status, detail time.Duration) Option {
	return func(s *Service) {
		s.statusInterval = status
		s.detailInterval = detail
	}
}

// New creates the tool service.
func New(client *touchstone.Client, provider auth.Provider, options ...Option) *Service {
	ret := &Service{
		client:         client,
		provider:       provider,
		throttle:       touchstone.NewThrottle(),
		tracker:        analytics.Nop{},
		logger:         zap.NewNop(),
		statusInterval: touchstone.StatusInterval,
		detailInterval: touchstone.DetailInterval,
	}
	for _, option := range options {
		option(ret)
	}
	ret.identifyUser(context.Background())
	return ret
}

// identifyUser links analytics to the stored account when the provider
// knows one. Failures stay silent; analytics never break the server.
func (s *Service) identifyUser(ctx context.Context) {
	identity, ok := s.provider.(auth.Identity)
	if !ok {
		return
	}
	email, err := identity.Email(ctx)
	if err != nil || email == "" {
		return
	}
	s.tracker.Identify(email)
}

// NewHandler creates a per-connection MCP handler.
func (s *Service) NewHandler(_ context.Context, _ transport.Notifier, _ protologger.Logger, _ protoclient.Operations) (protoserver.Handler, error) {
	return &handler{service: s}, nil
}

func (s *Service) newServer(options ...mcpserver.Option) (*mcpserver.Server, error) {
	options = append(options,
		mcpserver.WithNewHandler(s.NewHandler),
		mcpserver.WithImplementation(schema.Implementation{Name: Name, Version: Version}),
	)
	return mcpserver.New(options...)
}

// Stdio mounts the service on standard input and output.
func (s *Service) Stdio(ctx context.Context) (*stdiosrv.Server, error) {
	srv, err := s.newServer()
	if err != nil {
		return nil, err
	}
	return stdiosrv.New(ctx, srv.NewHandler), nil
}
