package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/metrics"
	"github.com/kirinyoku/tixsync/internal/pricefeed"
	"github.com/kirinyoku/tixsync/internal/repository"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	"github.com/kirinyoku/tixsync/internal/service/orders"
	"github.com/kirinyoku/tixsync/internal/uow"
	"github.com/shopspring/decimal"
)

type Config struct {
	QuoteTTL time.Duration
	MaxRetry int
}

type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	feed   pricefeed.Feed
	orders *orders.Service
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config
}

func New(
	store *postgresrepo.Store,
	feed pricefeed.Feed,
	ordersSvc *orders.Service,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 15 * time.Minute
	}

	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		feed:   feed,
		orders: ordersSvc,
		clock:  clk,
		logger: logger,
		cfg:    cfg,
	}
}

// Quote is a rate preview that creates nothing.
type Quote struct {
	Asset        string          `json:"asset"`
	Rate         decimal.Decimal `json:"rate"`
	BaseCurrency string          `json:"base_currency"`
}

func (s *Service) PreviewQuote(ctx context.Context, asset string) (Quote, error) {
	const op = "service.payments.PreviewQuote"

	a, err := domain.NormalizeAsset(asset)
	if err != nil {
		return Quote{}, fmt.Errorf("%s:%w", op, err)
	}

	rate, err := s.feed.Quote(ctx, a)
	if err != nil {
		return Quote{}, fmt.Errorf("%s:%w", op, err)
	}

	return Quote{Asset: a, Rate: rate, BaseCurrency: s.feed.BaseCurrency()}, nil
}

// CreateQuote issues a PENDING crypto payment for the caller's order, or
// returns the still-valid PENDING quote for the same asset.
//
// Parameters:
//   - ctx: request-scoped context.
//   - callerID: order owner.
//   - orderID: order to pay.
//   - asset: crypto symbol, case-insensitive.
//
// Returns:
//   - *domain.Payment: the new or reused quote.
//   - error: domain.ErrInvalidAsset, domain.ErrOrderNotFound, domain.ErrNotOwner,
//     domain.ErrOrderNotPending, domain.ErrOrderExpired, domain.ErrEmptyOrder,
//     pricefeed.ErrUnsupportedAsset.
func (s *Service) CreateQuote(
	ctx context.Context,
	callerID int64,
	orderID uuid.UUID,
	asset string,
) (*domain.Payment, error) {
	const op = "service.payments.CreateQuote"

	a, err := domain.NormalizeAsset(asset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// Fetched before the transaction opens.
	rate, err := s.feed.Quote(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var out *domain.Payment

	err = s.uow.Retry(ctx, s.cfg.MaxRetry, nil, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		now := s.clock.Now()
		payments := s.store.Payments().With(tx)

		o, err := s.store.Orders().With(tx).Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}

		if err := o.CheckOwner(callerID); err != nil {
			return err
		}

		if err := o.CheckMutable(now); err != nil {
			return err
		}

		if !o.TotalCost.IsPositive() {
			return domain.ErrEmptyOrder
		}

		existing, err := payments.PendingForOrder(ctx, orderID)
		switch {
		case err == nil:
			if existing.IsValidQuote(now) && existing.Asset == a {
				out = existing
				return nil
			}
			// Superseded or lapsed quote; the order may hold only one PENDING payment.
			if err := payments.Transition(ctx, existing.ID, domain.PaymentPending, domain.PaymentExpired, now); err != nil {
				return err
			}
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		p := &domain.Payment{
			ID:           uuid.New(),
			OrderID:      orderID,
			Asset:        a,
			BaseCurrency: s.feed.BaseCurrency(),
			QuoteRate:    rate,
			AmountCrypto: domain.CryptoAmount(o.TotalCost, rate),
			Status:       domain.PaymentPending,
			ExpiresAt:    domain.QuoteExpiry(now, s.cfg.QuoteTTL, o.ExpiresAt),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := payments.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// A concurrent request issued the quote first.
				return fmt.Errorf("%w: %w", repository.ErrVersionConflict, err)
			}
			return err
		}

		s.logger.Info("quote created",
			slog.String("order_id", orderID.String()),
			slog.String("asset", a),
			slog.String("rate", rate.String()),
			slog.String("base", p.BaseCurrency),
		)

		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRetryErr(err))
	}

	return out, nil
}

// ConfirmSettlement records an external settlement proof on a PENDING
// payment and confirms the owning order in the same transaction.
//
// A payment whose quote lapsed is marked EXPIRED; a payment whose order can no
// longer be paid is marked FAILED (or EXPIRED if the order lapsed). Those
// transitions are committed even though the call returns an error.
//
// Returns:
//   - *domain.Payment: the confirmed payment.
//   - error: domain.ErrInvalidProof, domain.ErrPaymentNotFound, domain.ErrNotOwner,
//     domain.ErrPaymentAlreadyConfirmed, domain.ErrPaymentNotPending,
//     domain.ErrPaymentExpired, domain.ErrOrderAlreadyConfirmed,
//     domain.ErrOrderNotPending, domain.ErrOrderExpired, domain.ErrProofAlreadyUsed.
func (s *Service) ConfirmSettlement(
	ctx context.Context,
	callerID int64,
	paymentID uuid.UUID,
	proof string,
) (*domain.Payment, error) {
	const op = "service.payments.ConfirmSettlement"

	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.ErrInvalidProof)
	}

	var (
		out    *domain.Payment
		reject error
	)

	err := s.uow.Retry(ctx, s.cfg.MaxRetry, nil, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		reject = nil
		now := s.clock.Now()
		payments := s.store.Payments().With(tx)

		p, err := payments.Get(ctx, paymentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}

		o, err := s.store.Orders().With(tx).Get(ctx, p.OrderID)
		if err != nil {
			return err
		}

		if err := o.CheckOwner(callerID); err != nil {
			return err
		}

		switch p.Status {
		case domain.PaymentConfirmed:
			return domain.ErrPaymentAlreadyConfirmed
		case domain.PaymentPending:
		default:
			return domain.ErrPaymentNotPending
		}

		if !p.ExpiresAt.After(now) {
			reject = domain.ErrPaymentExpired
			return payments.Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentExpired, now)
		}

		switch {
		case o.Status == domain.OrderConfirmed:
			return domain.ErrOrderAlreadyConfirmed
		case o.Status == domain.OrderExpired || (o.IsPending() && o.IsExpired(now)):
			reject = domain.ErrOrderExpired
			return payments.Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentExpired, now)
		case !o.IsPending():
			reject = domain.ErrOrderNotPending
			return payments.Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentFailed, now)
		}

		dup, err := payments.FindBySettlementProof(ctx, proof)
		switch {
		case err == nil:
			if dup.ID != p.ID {
				return domain.ErrProofAlreadyUsed
			}
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		if err := payments.Confirm(ctx, p.ID, proof, now); err != nil {
			switch {
			case errors.Is(err, repository.ErrConflict):
				return domain.ErrProofAlreadyUsed
			case errors.Is(err, repository.ErrStateChanged):
				return domain.ErrPaymentNotPending
			}
			return err
		}

		if err := s.orders.ConfirmWith(ctx, tx, after, callerID, o.ID); err != nil {
			return err
		}

		p.Status = domain.PaymentConfirmed
		p.SettlementProof = &proof
		p.UpdatedAt = now
		out = p

		return nil
	})

	switch {
	case err != nil:
		metrics.Settlement("rejected")
		return nil, fmt.Errorf("%s:%w", op, mapRetryErr(err))
	case reject != nil:
		metrics.Settlement("rejected")
		return nil, fmt.Errorf("%s:%w", op, reject)
	}

	metrics.Settlement("confirmed")
	s.logger.Info("settlement confirmed",
		slog.String("payment_id", out.ID.String()),
		slog.String("order_id", out.OrderID.String()),
	)

	return out, nil
}

// Get returns a payment of an order the caller owns.
func (s *Service) Get(ctx context.Context, callerID int64, paymentID uuid.UUID) (*domain.Payment, error) {
	const op = "service.payments.Get"

	p, err := s.store.Payments().Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	o, err := s.store.Orders().Get(ctx, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := o.CheckOwner(callerID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

func mapRetryErr(err error) error {
	if errors.Is(err, uow.ErrAttemptsExhausted) {
		return fmt.Errorf("%w: %w", repository.ErrVersionConflict, err)
	}
	return err
}
