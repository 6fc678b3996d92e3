package bot

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryStore is the slice of the order repository the sweeper needs.
type ExpiryStore interface {
	ExpirePending(ctx context.Context, now time.Time) ([]string, error)
}

// Sweeper periodically cancels pending orders whose payment window has
// passed, so abandoned orders do not sit pending forever.
type Sweeper struct {
	orders   ExpiryStore
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(orders ExpiryStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		orders:   orders,
		interval: interval,
		logger:   logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	ids, err := s.orders.ExpirePending(ctx, now.UTC())
	if err != nil {
		s.logger.Error("order expiry sweep failed", "error", err)
		return
	}
	if len(ids) > 0 {
		s.logger.Info("expired pending orders cancelled", "count", len(ids), "order_ids", ids)
	}
}
