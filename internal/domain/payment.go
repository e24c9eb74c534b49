package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentExpired   PaymentStatus = "EXPIRED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// AmountScale is the number of fractional digits kept for crypto amounts.
const AmountScale int32 = 18

// Payment is a crypto quote issued against an order.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	Asset           string          `json:"asset"`
	BaseCurrency    string          `json:"base_currency"`
	QuoteRate       decimal.Decimal `json:"quote_rate"`
	AmountCrypto    decimal.Decimal `json:"amount_crypto"`
	SettlementProof *string         `json:"settlement_proof,omitempty"`
	Status          PaymentStatus   `json:"status"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsValidQuote reports whether the payment is a still-usable PENDING quote.
func (p *Payment) IsValidQuote(now time.Time) bool {
	return p.Status == PaymentPending && p.ExpiresAt.After(now)
}

// NormalizeAsset trims and upper-cases an asset symbol.
func NormalizeAsset(asset string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(asset))
	if a == "" {
		return "", ErrInvalidAsset
	}
	return a, nil
}

// CryptoAmount converts total into units of an asset priced at rate,
// rounding up at AmountScale fractional digits.
func CryptoAmount(total, rate decimal.Decimal) decimal.Decimal {
	q, r := total.QuoRem(rate, AmountScale)
	if !r.IsZero() {
		q = q.Add(decimal.New(1, -AmountScale))
	}
	return q
}

// QuoteExpiry caps now + ttl at the order's own expiry.
func QuoteExpiry(now time.Time, ttl time.Duration, orderExpiresAt *time.Time) time.Time {
	exp := now.Add(ttl)
	if orderExpiresAt != nil && orderExpiresAt.Before(exp) {
		exp = *orderExpiresAt
	}
	return exp
}
