package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ServeConfig controls the HTTP listener.
type ServeConfig struct {
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string, cfg ServeConfig) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// cfg.ShutdownTimeout. In-flight crawl requests are cancelled by the
// shutdown deadline and answer with partial results.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg ServeConfig) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("api server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown error", "error", err)
			return srv.Close()
		}
		s.logger.Info("api server stopped")
		return nil
	})

	return g.Wait()
}
