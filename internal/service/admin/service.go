package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	"github.com/kirinyoku/tixsync/internal/service/inventory"
	"github.com/kirinyoku/tixsync/internal/uow"
	"github.com/shopspring/decimal"
)

type Config struct {
	MaxRetry int
	Limits   domain.LedgerLimits
}

type Service struct {
	store    *postgresrepo.Store
	notifier *inventory.Notifier
	uow      *uow.UoW
	cfg      Config
}

func New(store *postgresrepo.Store, notifier *inventory.Notifier, cfg Config) *Service {
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	if cfg.Limits.MaxIncrease <= 0 {
		cfg.Limits = domain.DefaultLedgerLimits
	}

	return &Service{
		store:    store,
		notifier: notifier,
		uow:      uow.NewUoW(store),
		cfg:      cfg,
	}
}

// CreateEvent stores a new event.
//
// Returns:
//   - error: admin.ErrInvalidName, admin.ErrInvalidSchedule.
func (s *Service) CreateEvent(ctx context.Context, e *domain.Event) error {
	const op = "service.admin.CreateEvent"

	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fmt.Errorf("%s:%w", op, ErrInvalidName)
	}

	if !e.EndsAt.After(e.StartsAt) {
		return fmt.Errorf("%s:%w", op, ErrInvalidSchedule)
	}

	if err := s.store.Admin().CreateEvent(ctx, e); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// CreateTicketType adds a ticket type with its initial quota to an event.
//
// Parameters:
//   - ctx: request-scoped context.
//   - t: ticket type to create; ID, Version and timestamps are filled in.
//
// Returns:
//   - error: admin.ErrInvalidName, domain.ErrInvalidPrice, domain.ErrInvalidQuota,
//     domain.ErrEventNotFound, domain.ErrTicketTypeConflict when the event
//     already has a ticket type with that name.
func (s *Service) CreateTicketType(ctx context.Context, t *domain.TicketType) error {
	const op = "service.admin.CreateTicketType"

	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%s:%w", op, ErrInvalidName)
	}

	if t.Price.LessThan(decimal.Zero) {
		return fmt.Errorf("%s:%w", op, domain.ErrInvalidPrice)
	}

	if t.Quota < 0 {
		return fmt.Errorf("%s:%w", op, domain.ErrInvalidQuota)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		ok, err := s.store.Admin().With(tx).EventExists(ctx, t.EventID)
		if err != nil {
			return err
		}

		if !ok {
			return domain.ErrEventNotFound
		}

		if err := s.store.TicketTypes().With(tx).Create(ctx, t); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.ErrTicketTypeConflict
			}
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, t)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Restock adds n units to a ticket type's quota.
//
// Returns:
//   - *domain.TicketType: the ticket type after the write.
//   - error: domain.ErrTicketTypeNotFound, domain.ErrInvalidAmount,
//     domain.ErrQuotaOverflow, repository.ErrVersionConflict when every
//     attempt lost to a concurrent writer.
func (s *Service) Restock(ctx context.Context, ticketTypeID int64, n int) (*domain.TicketType, error) {
	const op = "service.admin.Restock"

	var out *domain.TicketType

	err := s.uow.Retry(ctx, s.cfg.MaxRetry, nil, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		tt, err := inventory.Return(ctx, s.store.TicketTypes().With(tx), ticketTypeID, n, s.cfg.Limits)
		if err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, tt)
		})

		out = tt
		return nil
	})
	if err != nil {
		if errors.Is(err, uow.ErrAttemptsExhausted) {
			return nil, fmt.Errorf("%s:%w: %w", op, repository.ErrVersionConflict, err)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// DeleteTicketType removes a ticket type no order has ever referenced.
//
// Returns:
//   - error: domain.ErrTicketTypeNotFound, domain.ErrTicketTypeInUse.
func (s *Service) DeleteTicketType(ctx context.Context, ticketTypeID int64) error {
	const op = "service.admin.DeleteTicketType"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		repo := s.store.TicketTypes().With(tx)

		tt, err := repo.Get(ctx, ticketTypeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrTicketTypeNotFound
			}
			return err
		}

		if err := repo.Delete(ctx, ticketTypeID); err != nil {
			switch {
			case errors.Is(err, repository.ErrReferenced):
				return domain.ErrTicketTypeInUse
			case errors.Is(err, repository.ErrNotFound):
				return domain.ErrTicketTypeNotFound
			}
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.QuotaChanged(ctx, tt)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
