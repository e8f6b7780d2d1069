// Package apperr holds the error taxonomy shared by the checkout engine and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrOrderNotFound    = &NotFoundError{Entity: "order"}
	ErrPaymentNotFound  = &NotFoundError{Entity: "payment"}
	ErrProductNotFound  = &NotFoundError{Entity: "product"}
	ErrCartItemNotFound = &NotFoundError{Entity: "cart item"}
)

// ValidationError is returned before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
	// Cause is a category sentinel such as tax.ErrInvalidSlab.
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StockShortfall describes one cart line that cannot be fulfilled.
type StockShortfall struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// InsufficientStockError always carries every offending line, not the first.
type InsufficientStockError struct {
	Items []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d item(s)", len(e.Items))
}

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

// NotFoundError matches any other NotFoundError of the same entity under
// errors.Is, so callers can compare against the package sentinels.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	return ok && t.Entity == e.Entity
}

func NotFound(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// HTTPStatus returns the appropriate HTTP status code for the error
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		stock      *InsufficientStockError
		transition *InvalidTransitionError
		notFound   *NotFoundError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &stock):
		return http.StatusConflict
	case errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for a failed request.
type Response struct {
	Code    string           `json:"error"`
	Message string           `json:"message"`
	Field   string           `json:"field,omitempty"`
	Items   []StockShortfall `json:"items,omitempty"`
	From    string           `json:"current_status,omitempty"`
	To      string           `json:"attempted_status,omitempty"`
}

// Body builds the client-facing description of err. Unknown errors are
// reported generically so internals never leak.
func Body(err error) Response {
	var (
		validation *ValidationError
		stock      *InsufficientStockError
		transition *InvalidTransitionError
		notFound   *NotFoundError
	)

	switch {
	case errors.As(err, &validation):
		return Response{Code: "ValidationError", Message: validation.Error(), Field: validation.Field}
	case errors.As(err, &stock):
		return Response{Code: "InsufficientStock", Message: stock.Error(), Items: stock.Items}
	case errors.As(err, &transition):
		return Response{Code: "InvalidTransition", Message: transition.Error(), From: transition.From, To: transition.To}
	case errors.As(err, &notFound):
		return Response{Code: "NotFound", Message: notFound.Error()}
	case errors.Is(err, ErrEmptyCart):
		return Response{Code: "EmptyCart", Message: err.Error()}
	case errors.Is(err, ErrUnauthenticated):
		return Response{Code: "Unauthenticated", Message: err.Error()}
	case errors.Is(err, ErrForbidden):
		return Response{Code: "Forbidden", Message: err.Error()}
	default:
		return Response{Code: "InternalError", Message: "internal server error"}
	}
}
