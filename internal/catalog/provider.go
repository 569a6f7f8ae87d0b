package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Provider loads the product list from its backing store.
type Provider interface {
	Products(ctx context.Context) ([]Entry, error)
}

// Static serves a fixed product list.
type Static []Entry

func (s Static) Products(context.Context) ([]Entry, error) {
	out := make([]Entry, len(s))
	copy(out, s)
	return out, nil
}

// Snapshot holds the current catalog. Readers get an immutable *Catalog;
// Refresh swaps in a new one without touching the old.
type Snapshot struct {
	current atomic.Pointer[Catalog]
}

// NewSnapshot returns a snapshot holding c.
func NewSnapshot(c *Catalog) *Snapshot {
	s := &Snapshot{}
	if c == nil {
		c = New(nil)
	}
	s.current.Store(c)
	return s
}

// Load returns the current catalog.
func (s *Snapshot) Load() *Catalog {
	return s.current.Load()
}

// ErrEmptyRefresh is returned when a provider yields no products while the
// current catalog has some.
var ErrEmptyRefresh = errors.New("catalog refresh: provider returned no products")

// Refresh loads products from p and replaces the current catalog. On error,
// or when p returns nothing while products are loaded, the current catalog
// is kept.
func (s *Snapshot) Refresh(ctx context.Context, p Provider) error {
	entries, err := p.Products(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh: %w", err)
	}
	next := New(entries)
	if next.Len() == 0 && s.Load().Len() > 0 {
		return ErrEmptyRefresh
	}
	s.current.Store(next)
	return nil
}

// Watch refreshes the snapshot every interval until ctx is done.
func (s *Snapshot) Watch(ctx context.Context, p Provider, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx, p); err != nil {
				logger.Warn("catalog refresh failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			c := s.Load()
			logger.Debug("catalog refreshed",
				zap.Int("products", c.Len()),
				zap.String("version", c.Version()))
		}
	}
}
