package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderExpired        OrderStatus = "EXPIRED"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderPendingPayment, OrderConfirmed, OrderCancelled, OrderExpired:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Order is a user's basket. It stays mutable while PENDING_PAYMENT and
// its reservation window has not elapsed.
type Order struct {
	ID        uuid.UUID       `json:"id"`
	UserID    int64           `json:"user_id"`
	Status    OrderStatus     `json:"status"`
	TotalCost decimal.Decimal `json:"total_cost"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Items     []OrderDetail   `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderDetail is one line item. An order holds at most one detail per ticket type.
type OrderDetail struct {
	ID           int64           `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	TicketTypeID int64           `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Cost         decimal.Decimal `json:"cost"`
}

func (d *OrderDetail) RecalcCost() {
	d.Cost = d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

func NewOrder(id uuid.UUID, userID int64, now time.Time) *Order {
	return &Order{
		ID:        id,
		UserID:    userID,
		Status:    OrderPendingPayment,
		TotalCost: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (o *Order) IsPending() bool { return o.Status == OrderPendingPayment }

// IsExpired reports whether the reservation window has elapsed at now.
func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// CheckOwner returns ErrNotOwner unless userID owns the order.
func (o *Order) CheckOwner(userID int64) error {
	if o.UserID != userID {
		return ErrNotOwner
	}
	return nil
}

// CheckMutable verifies that items may still be added or removed.
func (o *Order) CheckMutable(now time.Time) error {
	if o.Status == OrderConfirmed {
		return ErrOrderAlreadyConfirmed
	}
	if !o.IsPending() {
		return ErrOrderNotPending
	}
	if o.IsExpired(now) {
		return ErrOrderExpired
	}
	return nil
}

func (o *Order) Item(ticketTypeID int64) (*OrderDetail, bool) {
	for i := range o.Items {
		if o.Items[i].TicketTypeID == ticketTypeID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// AddItem merges quantity into the existing line for ticketTypeID or appends a
// new one. The unit price is refreshed to the current ticket type price.
func (o *Order) AddItem(ticketTypeID int64, quantity int, unitPrice decimal.Decimal) OrderDetail {
	d, ok := o.Item(ticketTypeID)
	if !ok {
		o.Items = append(o.Items, OrderDetail{
			OrderID:      o.ID,
			TicketTypeID: ticketTypeID,
		})
		d = &o.Items[len(o.Items)-1]
	}

	d.Quantity += quantity
	d.UnitPrice = unitPrice
	d.RecalcCost()

	o.RecalcTotal()
	return *d
}

// RemoveItem drops the line for ticketTypeID and returns it.
func (o *Order) RemoveItem(ticketTypeID int64) (OrderDetail, error) {
	for i := range o.Items {
		if o.Items[i].TicketTypeID != ticketTypeID {
			continue
		}
		removed := o.Items[i]
		o.Items = append(o.Items[:i], o.Items[i+1:]...)
		o.RecalcTotal()
		return removed, nil
	}
	return OrderDetail{}, ErrItemNotFound
}

// RecalcTotal sets TotalCost to the sum of line costs.
func (o *Order) RecalcTotal() {
	total := decimal.Zero
	for _, d := range o.Items {
		total = total.Add(d.Cost)
	}
	o.TotalCost = total
}

// ExtendWindow resets the reservation window to now + window.
func (o *Order) ExtendWindow(now time.Time, window time.Duration) {
	exp := now.Add(window)
	o.ExpiresAt = &exp
}
