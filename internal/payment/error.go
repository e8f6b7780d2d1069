package payment

import (
	"errors"

	"gst-checkout/internal/apperr"
)

var (
	ErrPaymentNotFound = apperr.ErrPaymentNotFound

	ErrOrderNotPayable = errors.New("order is not awaiting payment")
	ErrAlreadyPaid     = errors.New("order is already paid")

	ErrFailedCreatePayment = errors.New("failed to create payment")
	ErrFailedGetPayment    = errors.New("failed to get payment")
	ErrFailedUpdatePayment = errors.New("failed to update payment")
	ErrFailedSaveWebhook   = errors.New("failed to save webhook event")
)
