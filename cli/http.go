package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/auth"
	"github.com/aegisnetinc/touchstone-mcp/server"
	"github.com/aegisnetinc/touchstone-mcp/session"
)

// sweepInterval paces the background purge of expired session indexes.
const sweepInterval = time.Hour

// HTTPCommand runs the cloud MCP server: streamable HTTP transport, redis
// backed sessions and the auth REST routes.
type HTTPCommand struct {
	Addr string `long:"addr" description:"listen address, overrides PORT"`
}

func (c *HTTPCommand) Execute(_ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err = rt.cfg.ValidateCloud(); err != nil {
		return err
	}
	redisClient, err := session.NewClient(rt.cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	sessions := session.NewStore(redisClient, session.WithStoreLogger(rt.logger))
	cipher, err := session.NewCipher(rt.cfg.EncryptionKey)
	if err != nil {
		return err
	}

	provider := auth.NewSessionProvider(sessions, cipher, auth.WithSessionLogger(rt.logger))
	service := server.New(rt.client, provider,
		server.WithTracker(rt.tracker),
		server.WithLogger(rt.logger),
	)
	authService := server.NewAuthService(rt.client, sessions, cipher, rt.cfg.SessionTTL(),
		server.WithAuthTracker(rt.tracker),
		server.WithAuthLogger(rt.logger),
	)

	addr := c.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", rt.cfg.Port)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := service.HTTP(ctx, addr, authService)
	if err != nil {
		return err
	}
	go sweepSessions(ctx, sessions, rt.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	rt.logger.Info("serving streamable http", zap.String("addr", addr))

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// sweepSessions periodically prunes index entries whose sessions redis has
// already expired.
func sweepSessions(ctx context.Context, sessions *session.Store, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if pruned > 0 {
				logger.Info("pruned expired sessions", zap.Int("count", pruned))
			}
		}
	}
}
