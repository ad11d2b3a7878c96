// Package proxy relays MCP traffic between a stdio client and a cloud
// deployment over streamable HTTP, injecting the stored session token as a
// fresh bearer on every outbound request.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	streamable "github.com/viant/jsonrpc/transport/client/http/streamable"
	stdiosrv "github.com/viant/jsonrpc/transport/server/stdio"
	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/auth"
)

// Lifecycle states; transitions only move forward.
const (
	stateIdle = int32(iota)
	stateRunning
	stateShuttingDown
	stateClosed
)

// TokenSource supplies the current session token; it is consulted on every
// outbound request so a re-login takes effect without restarting the proxy.
type TokenSource interface {
	SessionToken(ctx context.Context) (string, error)
}

// SecretTokenSource reads the session token from the local secret store.
type SecretTokenSource struct {
	store   auth.SecretStore
	account string
}

// NewSecretTokenSource creates a source for the given cloud server URL.
func NewSecretTokenSource(store auth.SecretStore, serverURL string) *SecretTokenSource {
	return &SecretTokenSource{store: store, account: auth.SessionAccount(serverURL)}
}

func (s *SecretTokenSource) SessionToken(ctx context.Context) (string, error) {
	return s.store.Get(ctx, s.account)
}

// Bridge is the stdio to streamable HTTP relay.
type Bridge struct {
	serverURL string
	source    TokenSource
	logger    *zap.Logger
	upstream  transport.Transport
	local     transport.Transport
	stdio     *stdiosrv.Server
	state     atomic.Int32
}

// Option customizes the bridge.
type Option func(*Bridge)

// WithLogger attaches a logger; the proxy shares stdout with the JSON-RPC
// stream, so callers must hand in a stderr bound logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New connects the upstream transport and prepares the stdio server.
func New(ctx context.Context, serverURL string, source TokenSource, options ...Option) (*Bridge, error) {
	ret := &Bridge{serverURL: serverURL, source: source, logger: zap.NewNop()}
	for _, option := range options {
		option(ret)
	}
	httpClient := &http.Client{
		Transport: &tokenTransport{source: source, base: http.DefaultTransport, logger: ret.logger},
	}
	upstream, err := streamable.New(ctx, serverURL,
		streamable.WithHandler(&upstreamHandler{bridge: ret}),
		streamable.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect upstream %v: %w", serverURL, err)
	}
	ret.upstream = upstream
	ret.stdio = stdiosrv.New(ctx, func(_ context.Context, tr transport.Transport) transport.Handler {
		ret.local = tr
		return &localHandler{bridge: ret}
	})
	return ret, nil
}

// Run serves stdio until the client disconnects. A bridge runs once.
func (b *Bridge) Run(_ context.Context) error {
	if !b.state.CompareAndSwap(stateIdle, stateRunning) {
		return fmt.Errorf("proxy already started")
	}
	defer b.state.Store(stateClosed)
	err := b.stdio.ListenAndServe()
	b.state.CompareAndSwap(stateRunning, stateShuttingDown)
	return err
}

// Shutdown stops forwarding; in-flight responses still drain.
func (b *Bridge) Shutdown() {
	b.state.CompareAndSwap(stateRunning, stateShuttingDown)
}

func (b *Bridge) forwarding() bool {
	return b.state.Load() == stateRunning
}

// localHandler forwards stdio requests to the cloud server.
type localHandler struct {
	bridge *Bridge
}

func (h *localHandler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Id = request.Id
	response.Jsonrpc = request.Jsonrpc
	b := h.bridge
	if !b.forwarding() {
		response.Error = jsonrpc.NewInternalError("proxy is shutting down", nil)
		return
	}
	upstream, err := b.upstream.Send(ctx, request)
	if err != nil {
		b.logger.Error("upstream request failed",
			zap.String("method", request.Method), zap.Error(err))
		response.Error = classifyUpstreamError(err)
		return
	}
	response.Result = upstream.Result
	response.Error = upstream.Error
}

func (h *localHandler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	b := h.bridge
	if !b.forwarding() {
		return
	}
	if err := b.upstream.Notify(ctx, notification); err != nil {
		b.logger.Error("upstream notification failed",
			zap.String("method", notification.Method), zap.Error(err))
	}
}

// upstreamHandler relays server-initiated traffic back to the stdio client.
type upstreamHandler struct {
	bridge *Bridge
}

func (h *upstreamHandler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Id = request.Id
	response.Jsonrpc = request.Jsonrpc
	b := h.bridge
	if b.local == nil || !b.forwarding() {
		response.Error = jsonrpc.NewInternalError("no client connection", nil)
		return
	}
	local, err := b.local.Send(ctx, request)
	if err != nil {
		b.logger.Error("client request failed",
			zap.String("method", request.Method), zap.Error(err))
		response.Error = jsonrpc.NewInternalError(err.Error(), nil)
		return
	}
	response.Result = local.Result
	response.Error = local.Error
}

func (h *upstreamHandler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	b := h.bridge
	if b.local == nil || !b.forwarding() {
		return
	}
	if err := b.local.Notify(ctx, notification); err != nil {
		b.logger.Error("client notification failed",
			zap.String("method", notification.Method), zap.Error(err))
	}
}

// tokenTransport injects the freshest session token as a bearer header on
// every request.
type tokenTransport struct {
	source TokenSource
	base   http.RoundTripper
	logger *zap.Logger
}

func (t *tokenTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	token, err := t.source.SessionToken(request.Context())
	if err != nil {
		t.logger.Warn("failed to read session token", zap.Error(err))
	}
	if token != "" {
		clone := request.Clone(request.Context())
		clone.Header.Set("Authorization", "Bearer "+token)
		request = clone
	}
	return t.base.RoundTrip(request)
}
