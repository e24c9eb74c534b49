package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/repository"
	"github.com/shopspring/decimal"
)

type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const orderColumns = `id, user_id, status, total_cost::text, expires_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		total string
	)

	if err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &total, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d, err := parseDecimal(total)
	if err != nil {
		return nil, err
	}
	o.TotalCost = d
	o.Items = []domain.OrderDetail{}

	return &o, nil
}

const detailColumns = `id, order_id, ticket_type_id, quantity, unit_price::text, cost::text`

func scanDetail(row pgx.Row) (*domain.OrderDetail, error) {
	var (
		d           domain.OrderDetail
		price, cost string
	)

	if err := row.Scan(&d.ID, &d.OrderID, &d.TicketTypeID, &d.Quantity, &price, &cost); err != nil {
		return nil, err
	}

	var err error
	if d.UnitPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if d.Cost, err = parseDecimal(cost); err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	const op = "postgres.OrderRepo.Create"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO orders (id, user_id, status, total_cost, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		o.ID, o.UserID, o.Status, o.TotalCost, o.ExpiresAt, o.CreatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get reads the order header without its line items.
//
// Returns:
//   - error: repository.ErrNotFound if the order does not exist.
func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	o, err := scanOrder(r.handle().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

// GetWithItems reads the order and all of its line items.
func (r *OrderRepo) GetWithItems(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.GetWithItems"

	o, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := r.Items(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	o.Items = items

	return o, nil
}

func (r *OrderRepo) Items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderDetail, error) {
	const op = "postgres.OrderRepo.Items"

	rows, err := r.handle().Query(ctx,
		`SELECT `+detailColumns+` FROM order_details WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	items := make([]domain.OrderDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		items = append(items, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return items, nil
}

// UpsertItem writes the merged line for (order, ticket type). The row's
// quantity, unit price and cost are replaced with the values in d.
func (r *OrderRepo) UpsertItem(ctx context.Context, d *domain.OrderDetail) error {
	const op = "postgres.OrderRepo.UpsertItem"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO order_details (order_id, ticket_type_id, quantity, unit_price, cost)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT ON CONSTRAINT order_details_order_ticket_type_key DO UPDATE
		    SET quantity   = EXCLUDED.quantity,
		        unit_price = EXCLUDED.unit_price,
		        cost       = EXCLUDED.cost,
		        updated_at = NOW()
		 RETURNING id`,
		d.OrderID, d.TicketTypeID, d.Quantity, d.UnitPrice, d.Cost,
	).Scan(&d.ID)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OrderRepo) DeleteItem(ctx context.Context, orderID uuid.UUID, ticketTypeID int64) error {
	const op = "postgres.OrderRepo.DeleteItem"

	tag, err := r.handle().Exec(ctx,
		`DELETE FROM order_details WHERE order_id = $1 AND ticket_type_id = $2`,
		orderID, ticketTypeID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// UpdateTotals stores the recomputed total and reservation window of a
// pending order.
//
// Returns:
//   - error: repository.ErrStateChanged if the order left PENDING_PAYMENT.
func (r *OrderRepo) UpdateTotals(
	ctx context.Context,
	id uuid.UUID,
	total decimal.Decimal,
	expiresAt *time.Time,
	now time.Time,
) error {
	const op = "postgres.OrderRepo.UpdateTotals"

	tag, err := r.handle().Exec(ctx,
		`UPDATE orders
		    SET total_cost = $2, expires_at = $3, updated_at = $4
		  WHERE id = $1 AND status = 'PENDING_PAYMENT'`,
		id, total, expiresAt, now,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStateChanged)
	}

	return nil
}

// Transition moves an order from one status to another.
//
// Returns:
//   - error: repository.ErrStateChanged if the order is no longer in from.
func (r *OrderRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.OrderStatus,
	now time.Time,
) error {
	const op = "postgres.OrderRepo.Transition"

	tag, err := r.handle().Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4
		  WHERE id = $1 AND status = $2`,
		id, from, to, now,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStateChanged)
	}

	return nil
}

// ListExpiredPending returns ids of PENDING_PAYMENT orders whose window
// elapsed before now, oldest first.
func (r *OrderRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgres.OrderRepo.ListExpiredPending"

	rows, err := r.handle().Query(ctx,
		`SELECT id FROM orders
		  WHERE status = 'PENDING_PAYMENT' AND expires_at < $1
		  ORDER BY expires_at
		  LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}
