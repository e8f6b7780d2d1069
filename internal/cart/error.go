package cart

import (
	"errors"

	"gst-checkout/internal/apperr"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity     = errors.New("invalid cart quantity")
	ErrProductNotAvailable = errors.New("product is not available")

	// -- Resource State --
	ErrCartItemNotFound = apperr.ErrCartItemNotFound

	// -- Database & Operation Failures --
	ErrFailedGetCart        = errors.New("failed to get cart")
	ErrFailedGetCartItem    = errors.New("failed to get cart item")
	ErrFailedGetCartRows    = errors.New("failed to get cart rows")
	ErrFailedCreateCartItem = errors.New("failed to create cart item")
	ErrFailedUpdateCart     = errors.New("failed to update cart item")
	ErrFailedRemoveCart     = errors.New("failed to remove cart item")
	ErrFailedClearCart      = errors.New("failed to clear cart")
	ErrFailedMergeCart      = errors.New("failed to merge carts")
)
