package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/orderhub/order-intake/internal/order"
)

// CSV appends rows to a file, writing the header when the file is new.
type CSV struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewCSV(path string) *CSV {
	return &CSV{path: path, now: time.Now}
}

func (s *CSV) SaveLine(_ context.Context, r order.Restaurant, l order.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, statErr := os.Stat(s.path)
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if statErr != nil || info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(NewRow(r, l, s.now()).Record()); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return nil
}
