package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	"github.com/kirinyoku/tixsync/internal/service/inventory"
	"github.com/kirinyoku/tixsync/internal/uow"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Service struct {
	store    *postgresrepo.Store
	uow      *uow.UoW
	notifier *inventory.Notifier
	clock    clock.Clock
}

func New(store *postgresrepo.Store, notifier *inventory.Notifier, clk clock.Clock) *Service {
	return &Service{
		store:    store,
		uow:      uow.NewUoW(store),
		notifier: notifier,
		clock:    clk,
	}
}

// Confirm finalizes a paid order.
//
// Parameters:
//   - ctx: request-scoped context.
//   - callerID: user confirming the order; must own it.
//   - orderID: order to confirm.
//
// Returns:
//   - error: domain.ErrOrderNotFound, domain.ErrNotOwner,
//     domain.ErrOrderAlreadyConfirmed, domain.ErrOrderNotPending,
//     domain.ErrOrderExpired, domain.ErrNoConfirmedPayment.
func (s *Service) Confirm(ctx context.Context, callerID int64, orderID uuid.UUID) error {
	const op = "service.orders.Confirm"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		return s.ConfirmWith(ctx, tx, after, callerID, orderID)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// ConfirmWith runs the confirmation inside a caller-owned transaction.
func (s *Service) ConfirmWith(
	ctx context.Context,
	tx postgresrepo.DB,
	after func(uow.AfterCommit),
	callerID int64,
	orderID uuid.UUID,
) error {
	now := s.clock.Now()
	orders := s.store.Orders().With(tx)

	o, err := orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrOrderNotFound
		}
		return err
	}

	if err := o.CheckOwner(callerID); err != nil {
		return err
	}

	if err := o.CheckMutable(now); err != nil {
		return err
	}

	paid, err := s.store.Payments().With(tx).HasConfirmed(ctx, orderID)
	if err != nil {
		return err
	}

	if !paid {
		return domain.ErrNoConfirmedPayment
	}

	if err := orders.Transition(ctx, orderID, domain.OrderPendingPayment, domain.OrderConfirmed, now); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return domain.ErrOrderNotPending
		}
		return err
	}

	after(func(ctx context.Context) {
		s.notifier.OrderChanged(ctx, orderID, domain.OrderConfirmed)
	})

	return nil
}

// Get returns the caller's order with its line items.
func (s *Service) Get(ctx context.Context, callerID int64, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.orders.Get"

	o, err := s.store.Orders().GetWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := o.CheckOwner(callerID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return o, nil
}

// ListMine returns the caller's orders, newest first.
func (s *Service) ListMine(ctx context.Context, callerID int64, limit, offset int) ([]domain.Order, error) {
	const op = "service.orders.ListMine"

	limit, offset = page(limit, offset)

	out, err := s.store.Query().ListOrdersByUser(ctx, callerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListByStatus returns orders in one status for administrators.
func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Order, error) {
	const op = "service.orders.ListByStatus"

	st, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	limit, offset = page(limit, offset)

	out, err := s.store.Query().ListOrdersByStatus(ctx, st, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
