// Package app wires the configured catalog source, AI client, sinks and
// metrics into a ready pipeline. Both the Cloud Function and the CLI start
// from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/alert"
	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/config"
	"github.com/orderhub/order-intake/internal/llm"
	"github.com/orderhub/order-intake/internal/metrics"
	"github.com/orderhub/order-intake/internal/normalize"
	"github.com/orderhub/order-intake/internal/parse"
	"github.com/orderhub/order-intake/internal/pipeline"
	"github.com/orderhub/order-intake/internal/resolve"
	"github.com/orderhub/order-intake/internal/store"
	"github.com/orderhub/order-intake/internal/validate"
)

// App owns every long-lived client. Close releases them.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Pipeline *pipeline.Pipeline
	Catalog  *catalog.Snapshot
	Provider catalog.Provider
	// Redis is nil when no Redis host is configured.
	Redis   *redis.Client
	Metrics *metrics.Metrics

	closers []func() error
}

// New builds the application. reg may be nil to disable metrics.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx, reg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, reg prometheus.Registerer) error {
	cfg := a.Config

	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	if cfg.Redis.Enabled() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.Redis.Close)
	}

	// The database also serves restaurant lookups, so connect whenever one
	// is configured.
	var pg *store.Postgres
	if cfg.Database.DSN() != "" {
		pool, err := store.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		pg = store.NewPostgres(pool)
	}

	units, specials := catalog.DefaultUnits(), catalog.SpecialCases{}
	switch cfg.Catalog.Source {
	case "file":
		f, err := catalog.ReadFile(cfg.Catalog.File)
		if err != nil {
			return err
		}
		if units, err = f.UnitTable(); err != nil {
			return fmt.Errorf("catalog file %q: %w", cfg.Catalog.File, err)
		}
		specials = f.SpecialCaseTable(units)
		a.Provider = catalog.FileProvider{Path: cfg.Catalog.File}
	case "postgres":
		if pg == nil {
			return errors.New("postgres catalog: no database configured")
		}
		specials = catalog.DefaultSpecialCases(units)
		a.Provider = pg
	case "redis":
		if a.Redis == nil {
			return errors.New("redis catalog: no redis host configured")
		}
		specials = catalog.DefaultSpecialCases(units)
		a.Provider = catalog.NewRedisProvider(a.Redis, cfg.Redis.CatalogKey)
	default:
		return fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	a.Catalog = catalog.NewSnapshot(nil)
	if err := a.Catalog.Refresh(ctx, a.Provider); err != nil {
		return err
	}
	a.Logger.Info("catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("products", a.Catalog.Load().Len()),
		zap.String("version", a.Catalog.Load().Version()))

	rewriter, suggester := a.aiServices()

	strategies := []resolve.Strategy{resolve.NewSpecialCaseStrategy(specials)}
	if suggester != nil {
		strategies = append(strategies, resolve.NewSuggestionStrategy(suggester).WithTimeout(cfg.AI.Timeout))
	}
	strategies = append(strategies, resolve.PhoneticStrategy{}, resolve.NewFuzzyStrategy(cfg.Fuzzy.Cutoff))
	resolver := resolve.New(a.Logger, strategies...)

	deps := pipeline.Deps{
		Catalog:    a.Catalog,
		Normalizer: normalize.New(rewriter, units, cfg.AI.Timeout, a.Logger),
		Parser:     parse.New(units, specials),
		Validator:  validate.New(resolver, units, specials, a.Logger),
		Logger:     a.Logger,
	}
	if pg != nil {
		deps.Directory = pg
	}
	if a.Metrics != nil {
		resolver.WithObserver(a.Metrics)
		deps.Observer = a.Metrics
	}

	escalator, err := a.escalator()
	if err != nil {
		return err
	}
	deps.Escalator = escalator

	switch cfg.Store.Sink {
	case "csv":
		deps.Store = store.NewCSV(cfg.Store.CSVPath)
	case "postgres":
		if pg == nil {
			return errors.New("postgres store: no database configured")
		}
		deps.Store = pg
	}

	a.Pipeline = pipeline.New(deps)
	return nil
}

// aiServices returns nil interfaces when AI is off, so the pipeline runs on
// its deterministic fallbacks alone.
func (a *App) aiServices() (normalize.Rewriter, resolve.Suggester) {
	cfg := a.Config
	if !cfg.AIActive() {
		a.Logger.Info("AI rewrite and suggestion disabled")
		return nil, nil
	}

	client := llm.New(llm.Config{
		APIKey:     cfg.OpenAI.APIKey,
		Model:      cfg.OpenAI.Model,
		BaseURL:    cfg.OpenAI.BaseURL,
		Timeout:    cfg.AI.Timeout,
		MaxRetries: cfg.AI.MaxRetries,
		RateLimit:  cfg.AI.RateLimit,
		RateBurst:  cfg.AI.RateBurst,
	}, a.Logger)
	if a.Metrics != nil {
		client.WithObserver(a.Metrics)
	}

	var suggester resolve.Suggester = client
	if a.Redis != nil {
		suggester = resolve.NewCachedSuggester(client, a.Redis, cfg.Redis.SuggestionTTL, a.Logger)
	}
	return client, suggester
}

func (a *App) escalator() (pipeline.Escalator, error) {
	cfg := a.Config
	switch cfg.Alert.Sink {
	case "redis":
		if a.Redis == nil {
			return nil, errors.New("redis alert sink: no redis host configured")
		}
		return alert.NewRedisEscalator(a.Redis, cfg.Alert.RedisChannel), nil
	case "kafka":
		k, err := alert.NewKafkaEscalator(cfg.Alert.KafkaBrokers, cfg.Alert.KafkaTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, k.Close)
		return k, nil
	default:
		return alert.NewLogEscalator(a.Logger), nil
	}
}

// WatchCatalog refreshes the catalog in the background until ctx is done.
func (a *App) WatchCatalog(ctx context.Context) {
	go a.Catalog.Watch(ctx, a.Provider, a.Config.Catalog.RefreshInterval, a.Logger)
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
