package httpgin

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReserveRequest struct {
	// OrderID of an existing basket; omit to start a new order.
	OrderID      string `json:"order_id" binding:"omitempty,uuid"`
	TicketTypeID int64  `json:"ticket_type_id" binding:"required,gt=0"`
	Quantity     int    `json:"quantity" binding:"required"`
}

type CreateQuoteRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
	Asset   string `json:"asset" binding:"required"`
}

type ConfirmSettlementRequest struct {
	SettlementProof string `json:"settlement_proof" binding:"required"`
}

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	OrganizerID int64  `json:"organizer_id"`
	StartsAt    string `json:"starts_at" binding:"required"`
	EndsAt      string `json:"ends_at" binding:"required"`
}

type CreateTicketTypeRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
	Quota int             `json:"quota"`
}

type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type PutQuotesRequest struct {
	Rates map[string]decimal.Decimal `json:"rates" binding:"required,min=1"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ReserveResponse struct {
	OrderID string `json:"order_id"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

type QuotesResponse struct {
	BaseCurrency string                     `json:"base_currency"`
	Rates        map[string]decimal.Decimal `json:"rates"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
