package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/repository"
)

type TicketTypeRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketTypeRepo) With(db DB) *TicketTypeRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketTypeRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const ticketTypeColumns = `id, event_id, name, price::text, quota, version, created_at, updated_at`

func scanTicketType(row pgx.Row) (*domain.TicketType, error) {
	var (
		t     domain.TicketType
		price string
	)

	if err := row.Scan(
		&t.ID, &t.EventID, &t.Name, &price, &t.Quota, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p, err := parseDecimal(price)
	if err != nil {
		return nil, err
	}
	t.Price = p

	return &t, nil
}

// Get reads a ticket type together with its current version.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket type does not exist.
func (r *TicketTypeRepo) Get(ctx context.Context, id int64) (*domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.Get"

	t, err := scanTicketType(r.handle().QueryRow(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// UpdateQuota persists a new quota if the row still carries expectedVersion,
// bumping the version by one.
//
// Returns:
//   - int64: the new version.
//   - error: repository.ErrVersionConflict when another writer got there first.
func (r *TicketTypeRepo) UpdateQuota(
	ctx context.Context,
	id int64,
	quota int,
	expectedVersion int64,
) (int64, error) {
	const op = "postgres.TicketTypeRepo.UpdateQuota"

	var version int64
	err := r.handle().QueryRow(ctx,
		`UPDATE ticket_types
		    SET quota = $2, version = version + 1, updated_at = NOW()
		  WHERE id = $1 AND version = $3
		RETURNING version`,
		id, quota, expectedVersion,
	).Scan(&version)
	if err != nil {
		err = wrapDBErr(op, err)
		if isNotFound(err) {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrVersionConflict)
		}
		return 0, err
	}

	return version, nil
}

func (r *TicketTypeRepo) Create(ctx context.Context, t *domain.TicketType) error {
	const op = "postgres.TicketTypeRepo.Create"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO ticket_types (event_id, name, price, quota)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, version, created_at, updated_at`,
		t.EventID, t.Name, t.Price, t.Quota,
	).Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Delete removes a ticket type. Rows referenced by order details are kept and
// repository.ErrReferenced is returned.
func (r *TicketTypeRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.TicketTypeRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM ticket_types WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *TicketTypeRepo) ListByEvent(ctx context.Context, eventID int64) ([]domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.ListByEvent"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = $1 ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := make([]domain.TicketType, 0)
	for rows.Next() {
		t, err := scanTicketType(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
