package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/pricefeed"
	"github.com/kirinyoku/tixsync/internal/repository"
	"github.com/kirinyoku/tixsync/internal/service/admin"
	"github.com/kirinyoku/tixsync/internal/service/reservation"
)

var (
	badRequestErrs = []error{
		domain.ErrInvalidQuantity,
		domain.ErrInvalidAmount,
		domain.ErrInvalidAsset,
		domain.ErrInvalidProof,
		domain.ErrInvalidPrice,
		domain.ErrInvalidQuota,
		domain.ErrInvalidStatus,
		admin.ErrInvalidName,
		admin.ErrInvalidSchedule,
		pricefeed.ErrUnsupportedAsset,
	}

	notFoundErrs = []error{
		domain.ErrOrderNotFound,
		domain.ErrPaymentNotFound,
		domain.ErrTicketTypeNotFound,
		domain.ErrEventNotFound,
		domain.ErrItemNotFound,
	}

	conflictErrs = []error{
		domain.ErrInsufficientQuota,
		domain.ErrQuotaOverflow,
		domain.ErrOrderNotPending,
		domain.ErrOrderExpired,
		domain.ErrOrderAlreadyConfirmed,
		domain.ErrNoConfirmedPayment,
		domain.ErrEmptyOrder,
		domain.ErrPaymentNotPending,
		domain.ErrPaymentAlreadyConfirmed,
		domain.ErrPaymentExpired,
		domain.ErrProofAlreadyUsed,
		domain.ErrTicketTypeInUse,
		domain.ErrTicketTypeConflict,
		pricefeed.ErrInvalidRate,
	}

	contentionErrs = []error{
		reservation.ErrBusy,
		reservation.ErrTooManyAttempts,
		repository.ErrVersionConflict,
	}
)

// respondErr maps service errors to HTTP statuses. Client-facing messages are
// the sentinel texts; wrapped operation prefixes are not exposed.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rl.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: reservation.ErrRateLimited.Error()})
		return
	}

	if errors.Is(err, domain.ErrNotOwner) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: domain.ErrNotOwner.Error()})
		return
	}

	if target, ok := match(err, badRequestErrs); ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: target.Error()})
		return
	}

	if target, ok := match(err, notFoundErrs); ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: target.Error()})
		return
	}

	if target, ok := match(err, conflictErrs); ok {
		c.JSON(http.StatusConflict, ErrorResponse{Error: target.Error()})
		return
	}

	if target, ok := match(err, contentionErrs); ok {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: target.Error()})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func match(err error, targets []error) (error, bool) {
	for _, t := range targets {
		if errors.Is(err, t) {
			return t, true
		}
	}
	return nil, false
}

func retryAfterSeconds(s float64) int {
	n := int(math.Ceil(s))
	if n < 1 {
		return 1
	}
	return n
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
