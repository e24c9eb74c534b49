package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/metrics"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
	"github.com/kirinyoku/tixsync/internal/service/inventory"
	"github.com/kirinyoku/tixsync/internal/uow"
)

// Locker serializes writers of one ticket type across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool)
	Release(ctx context.Context, key, token string) bool
}

type Config struct {
	LockTTL  time.Duration
	MaxRetry int
	// Window is how long a reservation holds quota before the order expires.
	Window time.Duration
	Limits domain.LedgerLimits
}

type Service struct {
	store    *postgresrepo.Store
	uow      *uow.UoW
	locker   Locker
	limiter  *redisrepo.SlidingWindowLimiter
	notifier *inventory.Notifier
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func New(
	store *postgresrepo.Store,
	locker Locker,
	limiter *redisrepo.SlidingWindowLimiter,
	notifier *inventory.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}

	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Minute
	}

	if cfg.Limits.MaxDecrease <= 0 {
		cfg.Limits.MaxDecrease = domain.DefaultLedgerLimits.MaxDecrease
	}

	if cfg.Limits.MaxIncrease <= 0 {
		cfg.Limits.MaxIncrease = domain.DefaultLedgerLimits.MaxIncrease
	}

	return &Service{
		store:    store,
		uow:      uow.NewUoW(store),
		locker:   locker,
		limiter:  limiter,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

type ReserveInput struct {
	CallerID int64
	// OrderID of an existing basket, or uuid.Nil to start a new one.
	OrderID      uuid.UUID
	TicketTypeID int64
	Quantity     int
	RateLimitKey string
}

// Reserve takes quantity units of a ticket type into the caller's order.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: caller, target order (or uuid.Nil for a new one), ticket type and quantity.
//
// Returns:
//   - uuid.UUID: the order the units were added to.
//   - error: domain validation and conflict errors, domain.ErrNotOwner,
//     ErrBusy when the ticket type lock is held, ErrTooManyAttempts when every
//     attempt lost a version race, ErrRateLimited.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (uuid.UUID, error) {
	const op = "service.reservation.Reserve"

	if in.Quantity < 1 {
		return uuid.Nil, fmt.Errorf("%s:%w", op, domain.ErrInvalidQuantity)
	}

	if in.Quantity >= s.cfg.Limits.MaxDecrease {
		return uuid.Nil, fmt.Errorf("%s:%w", op, domain.ErrInvalidAmount)
	}

	if err := s.allow(ctx, in.RateLimitKey); err != nil {
		metrics.Reservation("rate_limited")
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	orderID := in.OrderID
	creating := orderID == uuid.Nil

	if creating {
		orderID = uuid.New()
	} else if err := s.precheck(ctx, orderID, in.CallerID); err != nil {
		metrics.Reservation("rejected")
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	release, err := s.lock(ctx, in.TicketTypeID)
	if err != nil {
		metrics.Reservation("busy")
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}
	defer release()

	err = s.uow.Retry(ctx, s.cfg.MaxRetry, s.conflictLogger("reserve", in.TicketTypeID), func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		now := s.clock.Now()
		orders := s.store.Orders().With(tx)

		var o *domain.Order
		if creating {
			o = domain.NewOrder(orderID, in.CallerID, now)
			o.ExtendWindow(now, s.cfg.Window)
			if err := orders.Create(ctx, o); err != nil {
				return err
			}
		} else {
			var err error
			if o, err = s.loadMutable(ctx, orders, orderID, in.CallerID, now); err != nil {
				return err
			}
		}

		// The whole line is restocked in one Increase on cancel or expiry.
		if d, ok := o.Item(in.TicketTypeID); ok && d.Quantity+in.Quantity > s.cfg.Limits.MaxIncrease {
			return domain.ErrInvalidAmount
		}

		tt, err := inventory.Take(ctx, s.store.TicketTypes().With(tx), in.TicketTypeID, in.Quantity, s.cfg.Limits)
		if err != nil {
			return err
		}

		d := o.AddItem(tt.ID, in.Quantity, tt.Price)
		if err := orders.UpsertItem(ctx, &d); err != nil {
			return err
		}

		o.ExtendWindow(now, s.cfg.Window)
		if err := orders.UpdateTotals(ctx, o.ID, o.TotalCost, o.ExpiresAt, now); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return domain.ErrOrderNotPending
			}
			return err
		}

		if !creating {
			if err := s.voidQuote(ctx, tx, o.ID, now); err != nil {
				return err
			}
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, tt)
		})

		return nil
	})
	if err != nil {
		metrics.Reservation(outcome(err))
		return uuid.Nil, fmt.Errorf("%s:%w", op, mapRetryErr(err))
	}

	metrics.Reservation("reserved")
	return orderID, nil
}

// RemoveItem drops a line item from a mutable order and restocks its quantity.
//
// Returns:
//   - error: domain.ErrItemNotFound if the order has no line for the ticket type.
func (s *Service) RemoveItem(ctx context.Context, callerID int64, orderID uuid.UUID, ticketTypeID int64) error {
	const op = "service.reservation.RemoveItem"

	if err := s.precheck(ctx, orderID, callerID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	release, err := s.lock(ctx, ticketTypeID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer release()

	err = s.uow.Retry(ctx, s.cfg.MaxRetry, s.conflictLogger("remove_item", ticketTypeID), func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		now := s.clock.Now()
		orders := s.store.Orders().With(tx)

		o, err := s.loadMutable(ctx, orders, orderID, callerID, now)
		if err != nil {
			return err
		}

		removed, err := o.RemoveItem(ticketTypeID)
		if err != nil {
			return err
		}

		tt, err := inventory.Return(ctx, s.store.TicketTypes().With(tx), ticketTypeID, removed.Quantity, s.cfg.Limits)
		if err != nil {
			return err
		}

		if err := orders.DeleteItem(ctx, orderID, ticketTypeID); err != nil {
			return err
		}

		if err := orders.UpdateTotals(ctx, o.ID, o.TotalCost, o.ExpiresAt, now); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return domain.ErrOrderNotPending
			}
			return err
		}

		if err := s.voidQuote(ctx, tx, o.ID, now); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, tt)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, mapRetryErr(err))
	}

	return nil
}

// Cancel moves a pending order to CANCELLED and restocks all its line items
// in one transaction.
func (s *Service) Cancel(ctx context.Context, callerID int64, orderID uuid.UUID) error {
	const op = "service.reservation.Cancel"

	err := s.uow.Retry(ctx, s.cfg.MaxRetry, s.conflictLogger("cancel", 0), func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		now := s.clock.Now()
		orders := s.store.Orders().With(tx)

		o, err := orders.GetWithItems(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}

		if err := o.CheckOwner(callerID); err != nil {
			return err
		}

		if o.Status == domain.OrderConfirmed {
			return domain.ErrOrderAlreadyConfirmed
		}

		if !o.IsPending() {
			return domain.ErrOrderNotPending
		}

		touched, err := inventory.ReturnItems(ctx, s.store.TicketTypes().With(tx), o.Items, s.cfg.Limits)
		if err != nil {
			return err
		}

		if err := orders.Transition(ctx, o.ID, domain.OrderPendingPayment, domain.OrderCancelled, now); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return domain.ErrOrderNotPending
			}
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, touched...)
			s.notifier.OrderChanged(ctx, o.ID, domain.OrderCancelled)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, mapRetryErr(err))
	}

	return nil
}

// voidQuote expires the order's PENDING payment. Its crypto amount was priced
// for the total before this change and must not settle the new one.
func (s *Service) voidQuote(ctx context.Context, tx postgresrepo.DB, orderID uuid.UUID, now time.Time) error {
	payments := s.store.Payments().With(tx)

	p, err := payments.PendingForOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	return payments.Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentExpired, now)
}

// precheck rejects cheaply, before any lock is taken.
func (s *Service) precheck(ctx context.Context, orderID uuid.UUID, callerID int64) error {
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrOrderNotFound
		}
		return err
	}

	if err := o.CheckOwner(callerID); err != nil {
		return err
	}

	return o.CheckMutable(s.clock.Now())
}

func (s *Service) loadMutable(
	ctx context.Context,
	orders *postgresrepo.OrderRepo,
	orderID uuid.UUID,
	callerID int64,
	now time.Time,
) (*domain.Order, error) {
	o, err := orders.GetWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	if err := o.CheckOwner(callerID); err != nil {
		return nil, err
	}

	if err := o.CheckMutable(now); err != nil {
		return nil, err
	}

	return o, nil
}

// lock takes the ticket type lock and returns its release func. Release
// failures are logged; the lock then lapses at its TTL.
func (s *Service) lock(ctx context.Context, ticketTypeID int64) (func(), error) {
	key := redisrepo.KeyTicketTypeLock(ticketTypeID)

	token, ok := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	metrics.LockAcquire(ok)
	if !ok {
		return nil, ErrBusy
	}

	return func() {
		if !s.locker.Release(context.WithoutCancel(ctx), key, token) {
			s.logger.Warn("lock was not released by its holder",
				slog.String("key", key))
		}
	}, nil
}

func (s *Service) allow(ctx context.Context, key string) error {
	if s.limiter == nil || key == "" {
		return nil
	}

	d, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", slog.Any("error", err))
		return nil
	}

	if !d.Allowed {
		return RateLimitedError{RetryAfter: d.RetryAfter}
	}

	return nil
}

func (s *Service) conflictLogger(operation string, ticketTypeID int64) func(int, error) {
	return func(attempt int, err error) {
		metrics.VersionConflict(operation)
		s.logger.Warn("optimistic conflict",
			slog.String("operation", operation),
			slog.Int64("ticket_type_id", ticketTypeID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.cfg.MaxRetry),
			slog.Any("error", err),
		)
	}
}

func mapRetryErr(err error) error {
	if errors.Is(err, uow.ErrAttemptsExhausted) {
		return ErrTooManyAttempts
	}
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, uow.ErrAttemptsExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrInsufficientQuota):
		return "sold_out"
	default:
		return "rejected"
	}
}
