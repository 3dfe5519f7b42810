package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/stub"
)

func newStubServerCmd(a *app) *cobra.Command {
	var (
		addr  string
		users []string
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Run an in-memory backend for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Stub.Addr
			}
			srv := stub.New()
			srv.ReplyDelay = delay
			if a.cfg.Stub.BotReply != "" {
				srv.Reply = stub.StaticReply(a.cfg.Stub.BotReply)
			}
			for _, u := range users {
				email, password, ok := strings.Cut(u, ":")
				if !ok || email == "" || password == "" {
					return errs.Invalid("user", fmt.Sprintf("Expected email:password, got %q.", u))
				}
				srv.AddUser(email, email, password)
				logger.L.Info("seeded user", "email", email)
			}
			return serve(cmd.Context(), addr, srv.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringArrayVar(&users, "user", nil, "Seed an account as email:password (repeatable)")
	cmd.Flags().DurationVar(&delay, "reply-delay", 0, "Delay before the bot answers")
	return cmd
}

// serve runs h on addr until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("stub backend listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.L.Info("shutting down stub backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
