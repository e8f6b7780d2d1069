package order

import (
	"errors"

	"gst-checkout/internal/apperr"
)

var (
	ErrOrderNotFound = apperr.ErrOrderNotFound
	ErrForbidden     = apperr.ErrForbidden
	ErrEmptyCart     = apperr.ErrEmptyCart

	ErrTotalMismatch      = errors.New("cart total does not match")
	ErrInvalidAddress     = errors.New("invalid shipping address")
	ErrReservationRefused = errors.New("stock reservation refused under lock")
	ErrTotalsInconsistent = errors.New("order totals are inconsistent")
)
