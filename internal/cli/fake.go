package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pft/internal/fakeapi"
	"pft/internal/log"
)

func init() {
	rootCmd.AddCommand(serveFakeCmd)

	f := serveFakeCmd.Flags()
	f.String("addr", "", "listen address (overrides PFT_FAKE_API_ADDR)")
	f.String("secret", "", "token signing secret, random when empty")
	f.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	f.Duration("refresh-ttl", 7*24*time.Hour, "refresh cookie lifetime")
	f.String("seed-email", "", "create this user at startup")
	f.String("seed-password", "", "password for the seeded user")
	f.String("seed-name", "Demo", "name for the seeded user")
}

var serveFakeCmd = &cobra.Command{
	Use:   "serve-fake",
	Short: "Run an in-memory API server for local use",
	Long: `Run an in-memory implementation of the finance API, including login,
the refresh cookie, transactions, categories, budgets, dashboard and reports.
Data is lost when the server stops. A short --access-ttl is handy to watch
the client refresh its token.`,
	Args: cobra.NoArgs,
	RunE: runServeFake,
}

func runServeFake(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	logger := state.logger

	cfg := fakeapi.DefaultConfig()
	cfg.Addr = state.cfg.FakeAPIAddr
	if addr, _ := f.GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if secret, _ := f.GetString("secret"); secret != "" {
		cfg.Secret = []byte(secret)
	}
	cfg.AccessTTL, _ = f.GetDuration("access-ttl")
	cfg.RefreshTTL, _ = f.GetDuration("refresh-ttl")
	cfg.Logger = logger

	srv := fakeapi.New(cfg)

	if email, _ := f.GetString("seed-email"); email != "" {
		password, _ := f.GetString("seed-password")
		name, _ := f.GetString("seed-name")
		if len(password) < 6 {
			return errors.New("--seed-password must be at least 6 characters")
		}
		u, err := srv.Store().CreateUser(name, email, password)
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		logger.Info("Seeded user", log.FieldUserID, u.ID.String(), "email", u.Email)
	}

	ctx, done := GracefulShutdown(cmd.Context(), logger, 10*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown failed", log.FieldError, err)
		}
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Fake API listening", "addr", cfg.Addr, "base_url", "http://"+cfg.Addr+srv.Prefix())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			srv.Close()
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}
	WaitForShutdown(ctx, done)
	return nil
}
