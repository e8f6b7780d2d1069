package inventory

import (
	"errors"
	"fmt"

	"gst-checkout/internal/apperr"
)

var (
	ErrInvalidQuantity   = errors.New("invalid stock quantity")
	ErrInsufficientStock = errors.New("insufficient available stock")
	ErrNotEnoughReserved = errors.New("not enough reserved stock")

	ErrFailedLockStock   = errors.New("failed to lock inventory row")
	ErrFailedUpdateStock = errors.New("failed to update inventory row")
)

func reservedShortfall(requested, reserved int) error {
	return &apperr.ValidationError{
		Field:  "quantity",
		Reason: fmt.Sprintf("cannot take %d units, only %d reserved", requested, reserved),
		Cause:  ErrNotEnoughReserved,
	}
}
