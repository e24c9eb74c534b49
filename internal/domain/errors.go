package domain

import "errors"

// Validation errors.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidAmount   = errors.New("amount out of allowed range")
	ErrInvalidAsset    = errors.New("asset must not be blank")
	ErrInvalidProof    = errors.New("settlement proof must not be blank")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidQuota    = errors.New("quota must not be negative")
	ErrInvalidStatus   = errors.New("unknown status")
)

// Domain conflicts.
var (
	ErrInsufficientQuota       = errors.New("insufficient quota")
	ErrQuotaOverflow           = errors.New("quota overflow")
	ErrOrderNotPending         = errors.New("order is not pending payment")
	ErrOrderExpired            = errors.New("order has expired")
	ErrOrderAlreadyConfirmed   = errors.New("order already confirmed")
	ErrNoConfirmedPayment      = errors.New("order has no confirmed payment")
	ErrEmptyOrder              = errors.New("order has no items")
	ErrItemNotFound            = errors.New("order has no such item")
	ErrPaymentNotPending       = errors.New("payment is not pending")
	ErrPaymentAlreadyConfirmed = errors.New("payment already confirmed")
	ErrPaymentExpired          = errors.New("payment quote has expired")
	ErrProofAlreadyUsed        = errors.New("settlement proof already used")
	ErrTicketTypeInUse         = errors.New("ticket type is referenced by orders")
	ErrTicketTypeConflict      = errors.New("ticket type already exists")
)

// Lookups and authorization.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrNotOwner           = errors.New("caller does not own the order")
)
