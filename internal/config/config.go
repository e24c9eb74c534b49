package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Reservation ReservationConfig
	Payments    PaymentsConfig
	Jobs        JobsConfig
	Quotes      QuotesConfig
	RateLimit   RateLimitConfig
	Log         LogConfig

	IdempotencyTTL time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string

	MaxConns        int
	ConnectAttempts int
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

type ReservationConfig struct {
	// LockBackend is "redis" or "memory".
	LockBackend string
	LockTTL     time.Duration
	MaxRetry    int
	Window      time.Duration
	MaxDecrease int
	MaxIncrease int
}

type PaymentsConfig struct {
	QuoteTTL time.Duration
}

type JobsConfig struct {
	PaymentSweepInterval time.Duration
	OrderSweepInterval   time.Duration
	InitialDelay         time.Duration
	LockPurgeInterval    time.Duration
	BatchSize            int
}

type QuotesConfig struct {
	Enabled      bool
	Provider     string
	BaseCurrency string
	Assets       []string
	PollInterval time.Duration
	Endpoint     string
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var (
		cfg Config
		err error
	)

	r := reader{}

	cfg.Server = ServerConfig{
		Host: r.str("SERVER_HOST", "localhost"),
		Port: r.integer("SERVER_PORT", 8080),
	}

	cfg.Postgres = PostgresConfig{
		User:     r.required("POSTGRES_USER"),
		Password: r.required("POSTGRES_PASSWORD"),
		Name:     r.required("POSTGRES_DB"),
		Host:     r.str("POSTGRES_HOST", "localhost"),
		Port:     r.integer("POSTGRES_PORT", 5432),
		SSLMode:  r.str("POSTGRES_SSLMODE", "disable"),

		MaxConns:        r.integer("POSTGRES_MAX_CONNS", 20),
		ConnectAttempts: r.integer("POSTGRES_CONNECT_ATTEMPTS", 5),
	}

	cfg.Redis = RedisConfig{
		Addr:     r.str("REDIS_ADDR", "localhost:6380"),
		Password: r.str("REDIS_PASSWORD", ""),
		DB:       r.integer("REDIS_DB", 0),
		PoolSize: r.integer("REDIS_POOL_SIZE", 0),
	}

	cfg.Reservation = ReservationConfig{
		LockBackend: strings.ToLower(r.str("LOCK_BACKEND", "redis")),
		LockTTL:     r.duration("RESERVATION_LOCK_TTL", 5*time.Second),
		MaxRetry:    r.integer("RESERVATION_MAX_RETRY", 3),
		Window:      r.duration("RESERVATION_WINDOW", 30*time.Minute),
		MaxDecrease: r.integer("LEDGER_MAX_DECREASE", 4),
		MaxIncrease: r.integer("LEDGER_MAX_INCREASE", 4000),
	}

	cfg.Payments = PaymentsConfig{
		QuoteTTL: r.duration("QUOTE_TTL", 15*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		PaymentSweepInterval: r.duration("JOBS_PAYMENT_SWEEP_INTERVAL", 15*time.Second),
		OrderSweepInterval:   r.duration("JOBS_ORDER_SWEEP_INTERVAL", 30*time.Second),
		InitialDelay:         r.duration("JOBS_INITIAL_DELAY", 5*time.Second),
		LockPurgeInterval:    r.duration("JOBS_LOCK_PURGE_INTERVAL", 60*time.Second),
		BatchSize:            r.integer("JOBS_BATCH_SIZE", 200),
	}

	cfg.Quotes = QuotesConfig{
		Enabled:      r.boolean("QUOTES_ENABLED", false),
		Provider:     strings.ToLower(r.str("QUOTES_PROVIDER", "coingecko")),
		BaseCurrency: strings.ToUpper(r.str("QUOTES_BASE_CURRENCY", "TWD")),
		Assets:       r.list("QUOTES_ASSETS", []string{"BTC", "ETH", "USDT"}),
		PollInterval: r.duration("QUOTES_POLL_INTERVAL", 60*time.Second),
		Endpoint:     r.str("QUOTES_ENDPOINT", ""),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: r.boolean("RATE_LIMIT_ENABLED", true),
		Limit:   r.integer("RATE_LIMIT_RESERVE_LIMIT", 30),
		Window:  r.duration("RATE_LIMIT_RESERVE_WINDOW", time.Minute),
	}

	cfg.IdempotencyTTL = r.duration("IDEMPOTENCY_TTL", 2*time.Hour)

	cfg.Log = LogConfig{
		Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
		Format: strings.ToLower(r.str("LOG_FORMAT", "text")),
	}

	if err = r.err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Reservation.LockBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.Reservation.LockBackend)
	}

	if c.Postgres.MaxConns < 1 {
		return fmt.Errorf("POSTGRES_MAX_CONNS must be positive")
	}

	if c.Reservation.MaxDecrease < 2 {
		return fmt.Errorf("LEDGER_MAX_DECREASE must be at least 2")
	}

	if c.Reservation.MaxIncrease < 1 {
		return fmt.Errorf("LEDGER_MAX_INCREASE must be positive")
	}

	if c.Quotes.Enabled && c.Quotes.Provider != "coingecko" {
		return fmt.Errorf("unsupported QUOTES_PROVIDER %q", c.Quotes.Provider)
	}

	return nil
}

// reader collects the first parse failure so New can report it once.
type reader struct {
	first error
}

func (r *reader) fail(err error) {
	if r.first == nil {
		r.first = err
	}
}

func (r *reader) err() error { return r.first }

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) required(key string) string {
	v := r.str(key, "")
	if v == "" {
		r.fail(fmt.Errorf("missing %s", key))
	}
	return v
}

func (r *reader) integer(key string, def int) int {
	s := r.str(key, "")
	if s == "" {
		return def
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}

	return v
}

func (r *reader) boolean(key string, def bool) bool {
	s := r.str(key, "")
	if s == "" {
		return def
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}

	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	s := r.str(key, "")
	if s == "" {
		return def
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}

	if v <= 0 {
		r.fail(fmt.Errorf("invalid %s: must be positive", key))
		return def
	}

	return v
}

func (r *reader) list(key string, def []string) []string {
	s := r.str(key, "")
	if s == "" {
		return def
	}

	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return def
	}

	return out
}
