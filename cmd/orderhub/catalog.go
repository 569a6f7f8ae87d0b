package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/store"
)

type publisher interface {
	Publish(ctx context.Context, entries []catalog.Entry) error
}

func newCatalogCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and distribute the product catalog",
	}
	cmd.AddCommand(newCatalogPushCmd(root))
	return cmd
}

func newCatalogPushCmd(root *rootOptions) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Copy the catalog from the YAML file or Postgres into the Redis key read by the redis source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if !cfg.Redis.Enabled() {
				return fmt.Errorf("catalog push: redis.host is not set")
			}
			ctx := cmd.Context()

			var src catalog.Provider
			switch from {
			case "file":
				src = catalog.FileProvider{Path: cfg.Catalog.File}
			case "postgres":
				pool, err := store.Connect(ctx, cfg.Database.DSN())
				if err != nil {
					return err
				}
				defer pool.Close()
				src = store.NewPostgres(pool)
			default:
				return fmt.Errorf("catalog push: --from %q must be file or postgres", from)
			}

			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr(),
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()

			c, err := pushCatalog(ctx, src, catalog.NewRedisProvider(client, cfg.Redis.CatalogKey))
			if err != nil {
				return err
			}
			logger.Info("catalog pushed",
				zap.String("from", from),
				zap.String("key", cfg.Redis.CatalogKey),
				zap.Int("products", c.Len()),
				zap.String("version", c.Version()))
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d products (version %s)\n", c.Len(), c.Version())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "file", "catalog to copy: file or postgres")
	return cmd
}

// pushCatalog loads src and publishes it in catalog order. An empty source is
// refused so a bad file cannot wipe the shared catalog.
func pushCatalog(ctx context.Context, src catalog.Provider, dst publisher) (*catalog.Catalog, error) {
	entries, err := src.Products(ctx)
	if err != nil {
		return nil, err
	}
	c := catalog.New(entries)
	if c.Len() == 0 {
		return nil, fmt.Errorf("catalog push: source has no products")
	}
	if err := dst.Publish(ctx, c.Entries()); err != nil {
		return nil, err
	}
	return c, nil
}
