package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
}

// Writer receives polled rates.
type Writer interface {
	PutAll(ctx context.Context, rates map[string]decimal.Decimal) error
}

type PollerConfig struct {
	Endpoint string
	Base     string
	Assets   []string
	Interval time.Duration
	Timeout  time.Duration
}

// Poller pulls rates from CoinGecko's simple/price endpoint into a Writer.
type Poller struct {
	client *http.Client
	store  Writer
	cfg    PollerConfig
	logger *slog.Logger
}

func NewPoller(store Writer, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultCoinGeckoEndpoint
	}

	if cfg.Base == "" {
		cfg.Base = "TWD"
	}

	if len(cfg.Assets) == 0 {
		cfg.Assets = []string{"BTC", "ETH", "USDT"}
	}

	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Poller{
		client: &http.Client{Timeout: cfg.Timeout},
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Pull fetches one round of rates and stores them.
//
// Returns:
//   - int: number of assets updated.
func (p *Poller) Pull(ctx context.Context) (int, error) {
	const op = "pricefeed.Poller.Pull"

	wanted := make(map[string]string)
	ids := make([]string, 0, len(p.cfg.Assets))
	for _, a := range p.cfg.Assets {
		sym := strings.ToUpper(strings.TrimSpace(a))
		id, ok := coinGeckoIDs[sym]
		if !ok {
			p.logger.Debug("skip unsupported asset", slog.String("asset", sym))
			continue
		}
		if _, dup := wanted[id]; !dup {
			ids = append(ids, id)
		}
		wanted[id] = sym
	}

	if len(ids) == 0 {
		return 0, nil
	}

	vs := strings.ToLower(p.cfg.Base)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", vs)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%s: decode:%w", op, err)
	}

	rates := make(map[string]decimal.Decimal, len(wanted))
	for id, sym := range wanted {
		price, ok := body[id][vs]
		if !ok || !price.IsPositive() {
			p.logger.Debug("no usable price", slog.String("asset", sym), slog.String("base", p.cfg.Base))
			continue
		}
		rates[sym] = price
	}

	if err := p.store.PutAll(ctx, rates); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return len(rates), nil
}

// Run pulls every interval until ctx is done. A failed round is logged and
// the next one proceeds as scheduled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Pull(ctx)
			if err != nil {
				p.logger.Warn("external quote pull failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				p.logger.Info("external quotes updated", slog.Int("count", n), slog.String("base", p.cfg.Base))
			}
		}
	}
}
