package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
)

type Config struct {
	EventSummaryTTL time.Duration
	AvailabilityTTL time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// Ready checks the database and, when configured, the cache.
func (s *Service) Ready(ctx context.Context) error {
	const op = "service.query.Ready"

	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	return nil
}

// TTLs reports how long event summaries and availability stay cached.
func (s *Service) TTLs() (event, availability time.Duration) {
	return s.cfg.EventSummaryTTL, s.cfg.AvailabilityTTL
}

// GetEvent retrieves an event by its ID through the cache.
//
// Returns:
//   - error: domain.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventSummary(id),
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Query().GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, domain.ErrEventNotFound
				}
				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &event, nil
}

// GetAvailability returns the remaining quota of a ticket type. The cached
// value may trail the database by at most AvailabilityTTL; writers drop it
// after commit.
//
// Returns:
//   - error: domain.ErrTicketTypeNotFound if the ticket type is not found.
func (s *Service) GetAvailability(ctx context.Context, ticketTypeID int64) (*domain.Availability, error) {
	const op = "service.query.GetAvailability"

	a, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyTicketTypeAvailability(ticketTypeID),
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.Availability, error) {
			tt, err := s.store.TicketTypes().Get(ctx, ticketTypeID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Availability{}, domain.ErrTicketTypeNotFound
				}
				return domain.Availability{}, err
			}

			return tt.Availability(), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &a, nil
}

// ListAvailability returns every ticket type of an event with its remaining quota.
//
// Returns:
//   - error: domain.ErrEventNotFound if the event is not found.
func (s *Service) ListAvailability(ctx context.Context, eventID int64) ([]domain.Availability, error) {
	const op = "service.query.ListAvailability"

	list, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventTicketTypes(eventID),
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) ([]domain.Availability, error) {
			ok, err := s.store.Admin().EventExists(ctx, eventID)
			if err != nil {
				return nil, err
			}

			if !ok {
				return nil, domain.ErrEventNotFound
			}

			tts, err := s.store.TicketTypes().ListByEvent(ctx, eventID)
			if err != nil {
				return nil, err
			}

			out := make([]domain.Availability, 0, len(tts))
			for i := range tts {
				out = append(out, tts[i].Availability())
			}

			return out, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return list, nil
}
