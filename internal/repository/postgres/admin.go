package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixsync/internal/domain"
)

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AdminRepo) With(db DB) *AdminRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) CreateEvent(ctx context.Context, e *domain.Event) error {
	const op = "postgres.AdminRepo.CreateEvent"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO events (name, description, organizer_id, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.Name, e.Description, e.OrganizerID, e.StartsAt, e.EndsAt,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// EventExists reports whether the event id is known. Used before inserting
// ticket types so a missing event surfaces as not found rather than a
// foreign key violation.
func (r *AdminRepo) EventExists(ctx context.Context, id int64) (bool, error) {
	const op = "postgres.AdminRepo.EventExists"

	var ok bool
	if err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`,
		id,
	).Scan(&ok); err != nil {
		return false, wrapDBErr(op, err)
	}

	return ok, nil
}
