// Package expiration lapses stale quotes and abandoned orders on a schedule.
package expiration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/metrics"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	"github.com/kirinyoku/tixsync/internal/service/inventory"
	"github.com/kirinyoku/tixsync/internal/uow"
)

type Config struct {
	PaymentInterval time.Duration
	OrderInterval   time.Duration
	InitialDelay    time.Duration
	BatchSize       int
	Limits          domain.LedgerLimits
}

type Sweeper struct {
	store    *postgresrepo.Store
	uow      *uow.UoW
	notifier *inventory.Notifier
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func New(
	store *postgresrepo.Store,
	notifier *inventory.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Sweeper {
	if cfg.PaymentInterval <= 0 {
		cfg.PaymentInterval = 15 * time.Second
	}

	if cfg.OrderInterval <= 0 {
		cfg.OrderInterval = 30 * time.Second
	}

	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	if cfg.Limits.MaxIncrease <= 0 {
		cfg.Limits = domain.DefaultLedgerLimits
	}

	return &Sweeper{
		store:    store,
		uow:      uow.NewUoW(store),
		notifier: notifier,
		clock:    clk,
		logger:   logger.With(slog.String("component", "expiration")),
		cfg:      cfg,
	}
}

// ExpirePayments moves PENDING payments whose quote elapsed to EXPIRED.
// Failures are logged per record and do not stop the sweep.
func (s *Sweeper) ExpirePayments(ctx context.Context) (int, error) {
	const sweep = "payments"
	defer metrics.ObserveSweep(sweep, time.Now())

	now := s.clock.Now()
	payments := s.store.Payments()

	ids, err := payments.ListExpiredPending(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := payments.Transition(ctx, id, domain.PaymentPending, domain.PaymentExpired, now)
		switch {
		case err == nil:
			expired++
			metrics.SweepRecord(sweep, "expired")
		case errors.Is(err, repository.ErrStateChanged):
			metrics.SweepRecord(sweep, "skipped")
		default:
			metrics.SweepRecord(sweep, "failed")
			s.logger.Error("payment expiry failed",
				slog.String("payment_id", id.String()),
				slog.Any("error", err),
			)
		}
	}

	if expired > 0 {
		s.logger.Info("payments expired", slog.Int("count", expired))
	}

	return expired, nil
}

// ExpireOrders restocks and expires PENDING_PAYMENT orders past their window.
// Each order is handled in its own transaction: either every line item is
// returned and the order is EXPIRED, or nothing changes and the order is
// picked up again next cycle.
func (s *Sweeper) ExpireOrders(ctx context.Context) (int, error) {
	const sweep = "orders"
	defer metrics.ObserveSweep(sweep, time.Now())

	ids, err := s.store.Orders().ListExpiredPending(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		err := s.expireOrder(ctx, id)
		switch {
		case err == nil:
			expired++
			metrics.SweepRecord(sweep, "expired")
		case errors.Is(err, repository.ErrStateChanged):
			metrics.SweepRecord(sweep, "skipped")
		case postgresrepo.IsRetryable(err):
			metrics.SweepRecord(sweep, "conflict")
			s.logger.Warn("order expiry lost a quota race, deferring",
				slog.String("order_id", id.String()),
				slog.Any("error", err),
			)
		default:
			metrics.SweepRecord(sweep, "failed")
			s.logger.Error("order expiry failed",
				slog.String("order_id", id.String()),
				slog.Any("error", err),
			)
		}
	}

	if expired > 0 {
		s.logger.Info("orders expired", slog.Int("count", expired))
	}

	return expired, nil
}

func (s *Sweeper) expireOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		now := s.clock.Now()
		orders := s.store.Orders().With(tx)

		o, err := orders.GetWithItems(ctx, orderID)
		if err != nil {
			return err
		}

		// Re-checked under the transaction: the owner may have paid or
		// extended the window since the listing.
		if !o.IsPending() || !o.IsExpired(now) {
			return repository.ErrStateChanged
		}

		touched, err := inventory.ReturnItems(ctx, s.store.TicketTypes().With(tx), o.Items, s.cfg.Limits)
		if err != nil {
			return err
		}

		if err := orders.Transition(ctx, orderID, domain.OrderPendingPayment, domain.OrderExpired, now); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, touched...)
			s.notifier.OrderChanged(ctx, orderID, domain.OrderExpired)
		})

		return nil
	})
}

// Run drives both sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("expiration sweeper started",
		slog.Duration("payment_interval", s.cfg.PaymentInterval),
		slog.Duration("order_interval", s.cfg.OrderInterval),
	)

	if s.cfg.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.InitialDelay):
		}
	}

	payments := time.NewTicker(s.cfg.PaymentInterval)
	defer payments.Stop()

	orders := time.NewTicker(s.cfg.OrderInterval)
	defer orders.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiration sweeper stopped")
			return nil
		case <-payments.C:
			if _, err := s.ExpirePayments(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("payment sweep failed", slog.Any("error", err))
			}
		case <-orders.C:
			if _, err := s.ExpireOrders(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("order sweep failed", slog.Any("error", err))
			}
		}
	}
}
