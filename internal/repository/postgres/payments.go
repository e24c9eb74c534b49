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
)

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const paymentColumns = `id, order_id, asset, base_currency, quote_rate::text, amount_crypto::text,
	settlement_proof, status, expires_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p            domain.Payment
		rate, amount string
	)

	if err := row.Scan(
		&p.ID, &p.OrderID, &p.Asset, &p.BaseCurrency, &rate, &amount,
		&p.SettlementProof, &p.Status, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.QuoteRate, err = parseDecimal(rate); err != nil {
		return nil, err
	}
	if p.AmountCrypto, err = parseDecimal(amount); err != nil {
		return nil, err
	}

	return &p, nil
}

// Create inserts a PENDING payment.
//
// Returns:
//   - error: repository.ErrConflict if the order already has a PENDING payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Create"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO payments (id, order_id, asset, base_currency, quote_rate, amount_crypto,
		                       status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		p.ID, p.OrderID, p.Asset, p.BaseCurrency, p.QuoteRate, p.AmountCrypto,
		p.Status, p.ExpiresAt, p.CreatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Get"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

// PendingForOrder returns the order's PENDING payment, expired or not.
func (r *PaymentRepo) PendingForOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.PendingForOrder"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		  WHERE order_id = $1 AND status = 'PENDING'
		  ORDER BY created_at DESC
		  LIMIT 1`,
		orderID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PaymentRepo) FindBySettlementProof(ctx context.Context, proof string) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.FindBySettlementProof"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE settlement_proof = $1`,
		proof,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

// Confirm records the settlement proof on a PENDING payment.
//
// Returns:
//   - error: repository.ErrStateChanged if the payment is no longer PENDING.
//   - error: repository.ErrConflict if the proof is already recorded elsewhere.
func (r *PaymentRepo) Confirm(ctx context.Context, id uuid.UUID, proof string, now time.Time) error {
	const op = "postgres.PaymentRepo.Confirm"

	tag, err := r.handle().Exec(ctx,
		`UPDATE payments
		    SET status = 'CONFIRMED', settlement_proof = $2, updated_at = $3
		  WHERE id = $1 AND status = 'PENDING'`,
		id, proof, now,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStateChanged)
	}

	return nil
}

// Transition moves a payment between statuses.
//
// Returns:
//   - error: repository.ErrStateChanged if the payment is no longer in from.
func (r *PaymentRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.PaymentStatus,
	now time.Time,
) error {
	const op = "postgres.PaymentRepo.Transition"

	tag, err := r.handle().Exec(ctx,
		`UPDATE payments SET status = $3, updated_at = $4
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

func (r *PaymentRepo) HasConfirmed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	const op = "postgres.PaymentRepo.HasConfirmed"

	var ok bool
	if err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status = 'CONFIRMED')`,
		orderID,
	).Scan(&ok); err != nil {
		return false, wrapDBErr(op, err)
	}

	return ok, nil
}

// ListExpiredPending returns ids of PENDING payments whose quote elapsed
// before now.
func (r *PaymentRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgres.PaymentRepo.ListExpiredPending"

	rows, err := r.handle().Query(ctx,
		`SELECT id FROM payments
		  WHERE status = 'PENDING' AND expires_at < $1
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
