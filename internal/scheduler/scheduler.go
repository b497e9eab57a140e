package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/clock"
	"github.com/example/foodsched/internal/orders"
)

const batchSize = 100

type CartStore interface {
	ScheduledCarts(ctx context.Context, after *orders.CartCursor, limit int) ([]orders.Order, error)
	ClearShippedAt(ctx context.Context, id string) error
}

type CartChecker interface {
	CheckCart(ctx context.Context, o orders.Order, now time.Time) (availability.ValidationResult, error)
}

// Scheduler periodically re-validates carts holding a fulfilment time and
// clears the ones that can no longer be honoured.
type Scheduler struct {
	Carts    CartStore
	Checker  CartChecker
	Clock    clock.Clock
	Interval time.Duration
	Log      *slog.Logger

	wg sync.WaitGroup
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Scheduler) tick(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	if _, err := s.Sweep(ctx); err != nil {
		s.log().Error("scheduler: sweep failed", slog.Any("error", err))
	}
}

// Sweep pages through every scheduled cart, checks each against a single
// reference instant and returns how many lost their fulfilment time.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := s.Clock.Now()
	cleared := 0
	var after *orders.CartCursor
	for {
		carts, err := s.Carts.ScheduledCarts(ctx, after, batchSize)
		if err != nil {
			return cleared, err
		}
		cleared += s.sweepPage(ctx, carts, now)
		if len(carts) < batchSize {
			return cleared, nil
		}
		if err := ctx.Err(); err != nil {
			return cleared, err
		}
		after = orders.After(carts[len(carts)-1])
	}
}

func (s *Scheduler) sweepPage(ctx context.Context, carts []orders.Order, now time.Time) int {
	cleared := 0
	for _, c := range carts {
		res, err := s.Checker.CheckCart(ctx, c, now)
		if err != nil {
			s.log().Warn("scheduler: cart check failed", slog.String("order_id", c.ID), slog.Any("error", err))
			continue
		}
		if res.Accepted {
			continue
		}
		if err := s.Carts.ClearShippedAt(ctx, c.ID); err != nil {
			s.log().Warn("scheduler: clear shipped_at failed", slog.String("order_id", c.ID), slog.Any("error", err))
			continue
		}
		cleared++
		s.log().Info("cart fulfilment time cleared",
			slog.String("order_id", c.ID),
			slog.Int64("restaurant_id", c.RestaurantID),
			slog.String("reason", string(res.Reason)),
		)
	}
	return cleared
}
