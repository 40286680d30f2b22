package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/signcascade/internal/api"
	"github.com/MrWong99/signcascade/internal/app"
	"github.com/MrWong99/signcascade/internal/config"
	"github.com/MrWong99/signcascade/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the hot-reloadable config settings when the file changes")
	return cmd
}

// newApp builds the registry, the providers and the application.
func (c *cli) newApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(c.cfg, reg)
	if err != nil {
		return nil, err
	}
	opts = append([]app.Option{app.WithLevelVar(&c.level)}, opts...)
	return app.New(ctx, c.cfg, providers, opts...)
}

func (c *cli) serve(ctx context.Context, watch bool) error {
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	slog.Info("signcascade starting",
		"version", version,
		"config", c.configPath,
		"listen_addr", c.cfg.Server.ListenAddr,
		"strategy", c.cfg.Resolver.Strategy,
	)

	application, err := c.newApp(ctx)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return err
	}

	if watch {
		w, err := config.NewWatcher(c.configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	handler := api.New(application,
		api.WithHealth(application.Health()),
		api.WithMetricsHandler(observe.MetricsHandler()),
		api.WithLimits(c.cfg.Server.MaxUploadBytes, c.cfg.Server.MaxTextBytes),
	).Handler()

	srv := &http.Server{
		Addr:              c.cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := c.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("server ready, press Ctrl+C to shut down", "addr", srv.Addr, "tls", c.cfg.Server.TLS != nil)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
	case runErr = <-errCh:
		slog.Error("http server failed", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return err
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}
