package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/shopspring/decimal"
)

// CommissionService pays referrers their share of referee rewards.
type CommissionService struct {
	store Store
	rate  decimal.Decimal
	now   func() time.Time
}

func NewCommissionService(store Store, rate decimal.Decimal) *CommissionService {
	return &CommissionService{store: store, rate: rate, now: time.Now}
}

// Apply credits the referrer for event. Replays of the same event are
// no-ops, so at-least-once delivery is safe.
func (s *CommissionService) Apply(ctx context.Context, event domain.CommissionEvent) error {
	amount := event.Reward.Mul(s.rate).Round(domain.MoneyScale)
	if !amount.IsPositive() {
		return nil
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		inserted, err := tx.InsertCommission(ctx, &domain.Commission{
			EventID:    event.ID,
			ReferrerID: event.ReferrerID,
			RefereeID:  event.RefereeID,
			Source:     event.Source,
			Reward:     event.Reward,
			Amount:     amount,
			CreatedAt:  s.now(),
		})
		if err != nil {
			return fmt.Errorf("insert commission: %w", err)
		}
		if !inserted {
			slog.Debug("commission already applied", "event_id", event.ID)
			return nil
		}
		if _, err := tx.CreditBalance(ctx, event.ReferrerID, amount, s.now()); err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}
		return nil
	})
}

// dispatchCommission fires the commission hook for a referred user. It
// never fails the caller.
func dispatchCommission(d CommissionDispatcher, user *domain.User, source string, reward decimal.Decimal, at time.Time) {
	if d == nil || user.RefBy == nil || *user.RefBy == user.ID {
		return
	}
	d.Dispatch(domain.CommissionEvent{
		ID:         uuid.New(),
		ReferrerID: *user.RefBy,
		RefereeID:  user.ID,
		Source:     source,
		Reward:     reward,
		CreatedAt:  at,
	})
}

// CommissionApplier processes one commission event.
type CommissionApplier interface {
	Apply(ctx context.Context, event domain.CommissionEvent) error
}

// CommissionWorker is an in-process CommissionDispatcher backed by a
// bounded queue and a single consumer goroutine.
type CommissionWorker struct {
	applier CommissionApplier
	queue   chan domain.CommissionEvent
	wg      sync.WaitGroup
}

func NewCommissionWorker(applier CommissionApplier, size int) *CommissionWorker {
	return &CommissionWorker{
		applier: applier,
		queue:   make(chan domain.CommissionEvent, size),
	}
}

// Dispatch enqueues the event, dropping it with an error log when the queue
// is full.
func (w *CommissionWorker) Dispatch(event domain.CommissionEvent) {
	select {
	case w.queue <- event:
	default:
		slog.Error("commission queue full, event dropped",
			"event_id", event.ID,
			"referrer_id", event.ReferrerID,
			"referee_id", event.RefereeID,
		)
	}
}

// Start consumes the queue until ctx is cancelled. The returned function
// blocks until the consumer has exited.
func (w *CommissionWorker) Start(ctx context.Context) (wait func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		slog.Info("commission worker started")
		for {
			select {
			case <-ctx.Done():
				slog.Info("commission worker stopped")
				return
			case event := <-w.queue:
				w.process(event)
			}
		}
	}()
	return w.wg.Wait
}

func (w *CommissionWorker) process(event domain.CommissionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.applier.Apply(ctx, event); err != nil {
		slog.Error("commission failed",
			"error", err,
			"event_id", event.ID,
			"referrer_id", event.ReferrerID,
			"referee_id", event.RefereeID,
		)
	}
}
