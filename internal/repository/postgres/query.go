package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixsync/internal/domain"
)

// QueryRepo serves read-only views.
type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetEvent retrieves an event by its ID.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: unique identifier of the event to retrieve.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *QueryRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.QueryRepo.GetEvent"

	var e domain.Event
	err := r.handle().QueryRow(ctx,
		`SELECT id, name, description, organizer_id, starts_at, ends_at, created_at
		   FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.OrganizerID, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}

// ListOrdersByUser returns the user's orders, newest first, with line items.
func (r *QueryRepo) ListOrdersByUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]domain.Order, error) {
	const op = "postgres.QueryRepo.ListOrdersByUser"

	orders, err := r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		  WHERE user_id = $1
		  ORDER BY created_at DESC, id
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return orders, nil
}

// ListOrdersByStatus returns orders in the given status, newest first, with
// line items.
func (r *QueryRepo) ListOrdersByStatus(
	ctx context.Context,
	status domain.OrderStatus,
	limit, offset int,
) ([]domain.Order, error) {
	const op = "postgres.QueryRepo.ListOrdersByStatus"

	orders, err := r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		  WHERE status = $1
		  ORDER BY created_at DESC, id
		  LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return orders, nil
}

func (r *QueryRepo) listOrders(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	db := r.handle()

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0)
	index := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, *o)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return orders, nil
	}

	drows, err := db.Query(ctx,
		`SELECT `+detailColumns+` FROM order_details
		  WHERE order_id = ANY($1)
		  ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer drows.Close()

	for drows.Next() {
		d, err := scanDetail(drows)
		if err != nil {
			return nil, err
		}
		i := index[d.OrderID]
		orders[i].Items = append(orders[i].Items, *d)
	}

	if err := drows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
