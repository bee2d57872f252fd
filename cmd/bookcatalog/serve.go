// cmd/bookcatalog/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/eventstore"
	"bookcatalog/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose an in-memory catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts, nil)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = opts.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// runServe serves until ctx is cancelled. When ready is non-nil it receives
// the bound address once the listener is open.
func runServe(ctx context.Context, cmd *cobra.Command, opts *options, ready chan<- string) error {
	cfg, cleanup, err := setup(ctx, opts, false)
	defer cleanup()
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.Burst)
	}

	svc := catalog.NewService(eventstore.NewEventStore())
	server := &http.Server{
		Handler:           catalog.NewHandler(svc, limiter).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HTTP.Addr, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Catalog API listening on %s\n", ln.Addr())
	log.Info(log.CatHTTP, "server started", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info(log.CatHTTP, "server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
