package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/config"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/postgres"
	"github.com/kirinyoku/tixsync/internal/postgres/migrations"
	"github.com/kirinyoku/tixsync/internal/pricefeed"
	"github.com/kirinyoku/tixsync/internal/redis"
	"github.com/kirinyoku/tixsync/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
	"github.com/kirinyoku/tixsync/internal/service"
	"github.com/kirinyoku/tixsync/internal/service/expiration"
	"github.com/kirinyoku/tixsync/internal/service/payments"
	"github.com/kirinyoku/tixsync/internal/service/query"
	"github.com/kirinyoku/tixsync/internal/service/reservation"
	httpgin "github.com/kirinyoku/tixsync/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *goredis.Client
	services   *service.Services
	poller     *pricefeed.Poller
	memLocker  *memory.Locker
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Postgres.DSN(),
		MaxConns:        int32(cfg.Postgres.MaxConns),
		ConnectAttempts: cfg.Postgres.ConnectAttempts,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if err := migrations.Apply(ctx, pgxPool); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.NewCache(rdb, logger)
	pubsub := redisrepo.NewInventoryPubSub(rdb)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
	quoteStore := redisrepo.NewQuoteStore(rdb, cfg.Quotes.BaseCurrency)

	var limiter *redisrepo.SlidingWindowLimiter
	if cfg.RateLimit.Enabled {
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "reserve", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		pool:   pgxPool,
		rdb:    rdb,
	}

	var locker reservation.Locker
	switch cfg.Reservation.LockBackend {
	case "memory":
		a.memLocker = memory.NewLocker()
		locker = a.memLocker
	default:
		locker = redisrepo.NewLocker(rdb, logger)
	}

	feed := pricefeed.NewDynamic(quoteStore, staticFeed(cfg.Quotes.BaseCurrency), logger)

	if cfg.Quotes.Enabled {
		a.poller = pricefeed.NewPoller(quoteStore, pricefeed.PollerConfig{
			Endpoint: cfg.Quotes.Endpoint,
			Base:     cfg.Quotes.BaseCurrency,
			Assets:   cfg.Quotes.Assets,
			Interval: cfg.Quotes.PollInterval,
		}, logger)
	}

	limits := domain.LedgerLimits{
		MaxDecrease: cfg.Reservation.MaxDecrease,
		MaxIncrease: cfg.Reservation.MaxIncrease,
	}

	// Initialize services
	a.services = service.NewServices(service.Deps{
		Store:   store,
		Cache:   cache,
		PubSub:  pubsub,
		Limiter: limiter,
		Locker:  locker,
		Feed:    feed,
		Clock:   clock.NewSystem(),
		Logger:  logger,
	}, service.Config{
		Reservation: reservation.Config{
			LockTTL:  cfg.Reservation.LockTTL,
			MaxRetry: cfg.Reservation.MaxRetry,
			Window:   cfg.Reservation.Window,
			Limits:   limits,
		},
		Payments: payments.Config{
			QuoteTTL: cfg.Payments.QuoteTTL,
			MaxRetry: cfg.Reservation.MaxRetry,
		},
		Query: query.Config{},
		Expiration: expiration.Config{
			PaymentInterval: cfg.Jobs.PaymentSweepInterval,
			OrderInterval:   cfg.Jobs.OrderSweepInterval,
			InitialDelay:    cfg.Jobs.InitialDelay,
			BatchSize:       cfg.Jobs.BatchSize,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(a.services, idempotencyStore, quoteStore, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// staticFeed is the fallback table, re-based when the configured base
// currency is not the built-in one.
func staticFeed(base string) pricefeed.Feed {
	def := pricefeed.DefaultStatic()
	if base == "" || base == def.BaseCurrency() {
		return def
	}
	return pricefeed.NewStatic(base, nil)
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Expiration sweeps
	g.Go(func() error {
		return a.services.Expiration.Run(gCtx)
	})

	if a.poller != nil {
		g.Go(func() error {
			return a.poller.Run(gCtx)
		})
	}

	if a.memLocker != nil {
		g.Go(func() error {
			return a.memLocker.RunPurger(gCtx, a.cfg.Jobs.LockPurgeInterval, a.logger)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("redis close failed", slog.Any("error", err))
	}
	a.pool.Close()
}
