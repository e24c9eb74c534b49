package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	postgres "github.com/kirinyoku/tixsync/internal/repository/postgres"
)

// ErrAttemptsExhausted is returned by Retry when every attempt hit a conflict.
var ErrAttemptsExhausted = errors.New("transaction attempts exhausted")

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error

// UoW represents a unit of work.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(ctx context.Context, fn TxFunc) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn TxFunc) error {
	var hooks []AfterCommit

	err := u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// Retry runs fn in a fresh transaction per attempt, at most attempts times,
// while it fails with a retryable conflict. Hooks of failed attempts are
// discarded. onConflict, if set, is told about each lost attempt.
func (u *UoW) Retry(
	ctx context.Context,
	attempts int,
	onConflict func(attempt int, err error),
	fn TxFunc,
) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := u.Do(ctx, fn)
		if err == nil {
			return nil
		}

		if !postgres.IsRetryable(err) {
			return err
		}

		last = err
		if onConflict != nil {
			onConflict(attempt, err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %w", ErrAttemptsExhausted, last)
}
