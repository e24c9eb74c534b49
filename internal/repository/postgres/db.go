package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn in a transaction. Without opts the transaction is
// REPEATABLE READ, so a row updated by a concurrent committed transaction
// fails the second writer with a serialization error instead of blocking it
// into a lost update.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return wrapDBErr("postgres.Store.RunTx", err)
	}

	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		// A serialization failure can surface at commit time.
		return wrapDBErr("postgres.Store.RunTx.commit", err)
	}

	return nil
}

// Ping reports whether the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Ping:%w", err)
	}

	return nil
}

func (s *Store) Query() *QueryRepo            { return &QueryRepo{pool: s.pool} }
func (s *Store) Admin() *AdminRepo            { return &AdminRepo{pool: s.pool} }
func (s *Store) Orders() *OrderRepo           { return &OrderRepo{pool: s.pool} }
func (s *Store) TicketTypes() *TicketTypeRepo { return &TicketTypeRepo{pool: s.pool} }
func (s *Store) Payments() *PaymentRepo       { return &PaymentRepo{pool: s.pool} }
