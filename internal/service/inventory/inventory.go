// Package inventory applies ledger operations to persisted ticket types.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
)

// Take reads the ticket type, decreases its quota by n and writes it back
// against the version it was read at.
//
// Returns:
//   - *domain.TicketType: the ticket type after the write.
//   - error: domain.ErrTicketTypeNotFound, a ledger error, or
//     repository.ErrVersionConflict when a concurrent writer won.
func Take(
	ctx context.Context,
	repo *postgresrepo.TicketTypeRepo,
	ticketTypeID int64,
	n int,
	limits domain.LedgerLimits,
) (*domain.TicketType, error) {
	const op = "service.inventory.Take"

	tt, err := get(ctx, repo, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tt.Decrease(n, limits); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := write(ctx, repo, tt); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return tt, nil
}

// Return gives n units back to the ticket type under the same version check.
func Return(
	ctx context.Context,
	repo *postgresrepo.TicketTypeRepo,
	ticketTypeID int64,
	n int,
	limits domain.LedgerLimits,
) (*domain.TicketType, error) {
	const op = "service.inventory.Return"

	tt, err := get(ctx, repo, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tt.Increase(n, limits); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := write(ctx, repo, tt); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return tt, nil
}

// ReturnItems restocks every line item of an order.
func ReturnItems(
	ctx context.Context,
	repo *postgresrepo.TicketTypeRepo,
	items []domain.OrderDetail,
	limits domain.LedgerLimits,
) ([]*domain.TicketType, error) {
	touched := make([]*domain.TicketType, 0, len(items))
	for _, d := range items {
		tt, err := Return(ctx, repo, d.TicketTypeID, d.Quantity, limits)
		if err != nil {
			return nil, err
		}
		touched = append(touched, tt)
	}
	return touched, nil
}

func get(ctx context.Context, repo *postgresrepo.TicketTypeRepo, id int64) (*domain.TicketType, error) {
	tt, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrTicketTypeNotFound
		}
		return nil, err
	}
	return tt, nil
}

func write(ctx context.Context, repo *postgresrepo.TicketTypeRepo, tt *domain.TicketType) error {
	version, err := repo.UpdateQuota(ctx, tt.ID, tt.Quota, tt.Version)
	if err != nil {
		return err
	}
	tt.Version = version
	return nil
}
