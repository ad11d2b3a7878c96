package server

import (
	"context"
	"net/http"
	"strings"

	mcpserver "github.com/viant/mcp/server"

	"github.com/aegisnetinc/touchstone-mcp/auth"
)

// bearerMiddleware copies the Authorization bearer token into the request
// context, where the session provider picks it up per tool call. Requests
// without a token pass through; tool calls will answer NOT_AUTHENTICATED.
func bearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			r = r.WithContext(auth.WithSessionToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// HTTP mounts the streamable MCP endpoint at /mcp together with the auth
// REST routes and a health probe.
func (s *Service) HTTP(ctx context.Context, addr string, authService *AuthService) (*http.Server, error) {
	srv, err := s.newServer(mcpserver.WithAuthorizer(bearerMiddleware))
	if err != nil {
		return nil, err
	}
	srv.UseStreamableHTTP(true)
	mcpEndpoint := srv.HTTP(ctx, addr)

	mux := http.NewServeMux()
	if authService != nil {
		authService.Register(mux)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", mcpEndpoint.Handler)

	return &http.Server{Addr: addr, Handler: mux}, nil
}
