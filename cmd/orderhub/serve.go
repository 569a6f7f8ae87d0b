package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	orderintake "github.com/orderhub/order-intake"
	"github.com/orderhub/order-intake/internal/metrics"
)

const functionTarget = "order-intake"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the order intake CloudEvent function and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := metrics.NewRegistry()
			a, err := opts.build(ctx, cfg, logger, reg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.WatchCatalog(ctx)

			h := orderintake.NewHandler(a.Pipeline, nil, logger)
			if a.Redis != nil {
				h = orderintake.NewHandler(a.Pipeline, a.Redis, logger)
			}
			orderintake.Use(h)

			if cfg.Metrics.Addr != "" {
				srv := &http.Server{
					Addr:              cfg.Metrics.Addr,
					Handler:           metrics.Handler(reg),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server stopped", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if os.Getenv("FUNCTION_TARGET") == "" {
				_ = os.Setenv("FUNCTION_TARGET", functionTarget)
			}
			port := strconv.Itoa(cfg.Server.Port)
			logger.Info("function listening", zap.String("port", port), zap.String("target", functionTarget))

			errc := make(chan error, 1)
			go func() { errc <- funcframework.Start(port) }()
			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				return nil
			}
		},
	}
}
