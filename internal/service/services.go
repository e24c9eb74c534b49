package service

import (
	"log/slog"

	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/pricefeed"
	postgres "github.com/kirinyoku/tixsync/internal/repository/postgres"
	redis "github.com/kirinyoku/tixsync/internal/repository/redis"
	"github.com/kirinyoku/tixsync/internal/service/admin"
	"github.com/kirinyoku/tixsync/internal/service/expiration"
	"github.com/kirinyoku/tixsync/internal/service/inventory"
	"github.com/kirinyoku/tixsync/internal/service/orders"
	"github.com/kirinyoku/tixsync/internal/service/payments"
	"github.com/kirinyoku/tixsync/internal/service/query"
	"github.com/kirinyoku/tixsync/internal/service/reservation"
)

type Services struct {
	Reservation *reservation.Service
	Orders      *orders.Service
	Payments    *payments.Service
	Query       *query.Service
	Admin       *admin.Service
	Expiration  *expiration.Sweeper
}

type Config struct {
	Reservation reservation.Config
	Payments    payments.Config
	Query       query.Config
	Admin       admin.Config
	Expiration  expiration.Config
}

// Deps are the collaborators shared by every service. Cache and PubSub may
// be nil; Limiter may be nil to disable rate limiting.
type Deps struct {
	Store   *postgres.Store
	Cache   *redis.Cache
	PubSub  *redis.InventoryPubSub
	Limiter *redis.SlidingWindowLimiter
	Locker  reservation.Locker
	Feed    pricefeed.Feed
	Clock   clock.Clock
	Logger  *slog.Logger
}

func NewServices(d Deps, cfg Config) *Services {
	notifier := inventory.NewNotifier(d.Cache, d.PubSub, d.Logger)
	ordersSvc := orders.New(d.Store, notifier, d.Clock)

	// One set of ledger limits for every quota writer.
	cfg.Admin.Limits = cfg.Reservation.Limits
	cfg.Expiration.Limits = cfg.Reservation.Limits

	return &Services{
		Reservation: reservation.New(d.Store, d.Locker, d.Limiter, notifier, d.Clock, d.Logger, cfg.Reservation),
		Orders:      ordersSvc,
		Payments:    payments.New(d.Store, d.Feed, ordersSvc, d.Clock, d.Logger, cfg.Payments),
		Query:       query.New(d.Store, d.Cache, cfg.Query),
		Admin:       admin.New(d.Store, notifier, cfg.Admin),
		Expiration:  expiration.New(d.Store, notifier, d.Clock, d.Logger, cfg.Expiration),
	}
}
