package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLimits bounds a single quota mutation.
// Decrease accepts n in [1, MaxDecrease); Increase accepts n in [1, MaxIncrease].
type LedgerLimits struct {
	MaxDecrease int
	MaxIncrease int
}

var DefaultLedgerLimits = LedgerLimits{MaxDecrease: 4, MaxIncrease: 4000}

// maxQuota matches the INTEGER column the quota lives in.
const maxQuota = math.MaxInt32

type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OrganizerID int64     `json:"organizer_id"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketType is a purchasable category of ticket with a finite quota.
// Version increments on every persisted quota change.
type TicketType struct {
	ID        int64           `json:"id"`
	EventID   int64           `json:"event_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quota     int             `json:"quota"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decrease takes n units out of the quota.
func (t *TicketType) Decrease(n int, limits LedgerLimits) error {
	if n < 1 || n >= limits.MaxDecrease {
		return ErrInvalidAmount
	}
	if t.Quota < n {
		return ErrInsufficientQuota
	}

	t.Quota -= n
	return nil
}

// Increase returns n units to the quota.
func (t *TicketType) Increase(n int, limits LedgerLimits) error {
	if n < 1 || n > limits.MaxIncrease {
		return ErrInvalidAmount
	}
	if t.Quota > maxQuota-n {
		return ErrQuotaOverflow
	}

	t.Quota += n
	return nil
}

// Availability is the cached read model of a ticket type.
type Availability struct {
	TicketTypeID int64           `json:"ticket_type_id"`
	EventID      int64           `json:"event_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Remaining    int             `json:"remaining"`
}

func (t *TicketType) Availability() Availability {
	return Availability{
		TicketTypeID: t.ID,
		EventID:      t.EventID,
		Name:         t.Name,
		Price:        t.Price,
		Remaining:    t.Quota,
	}
}
