package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/app"
	"github.com/orderhub/order-intake/internal/config"
	"github.com/orderhub/order-intake/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "orderhub",
		Short:         "Interpret restaurant supply orders sent as chat messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(newServeCmd(opts), newParseCmd(opts), newCatalogCmd(opts))
	return cmd
}

// load reads and validates the configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (o *rootOptions) build(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return a, nil
}
