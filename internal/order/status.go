package order

import (
	"strings"

	"gst-checkout/internal/apperr"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusReturned  OrderStatus = "RETURNED"
)

var validNextOrder = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true, StatusReturned: true},
	StatusDelivered: {StatusReturned: true},
	StatusCancelled: {},
	StatusReturned:  {},
}

// CanTransition reports whether an order may move from one status to another.
// Unknown statuses never transition.
func CanTransition(from, to OrderStatus) bool {
	return validNextOrder[from][to]
}

func (s OrderStatus) Valid() bool {
	_, ok := validNextOrder[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(validNextOrder[s]) == 0
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperr.Validation("order_status", "unknown order status "+s)
	}
	return st, nil
}

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentTimeout   PaymentStatus = "TIMEOUT"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// PENDING may still resolve; the gateway reports it for slow rails.
var validNextPayment = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentInitiated: {PaymentPending: true, PaymentSuccess: true, PaymentFailed: true, PaymentTimeout: true},
	PaymentPending:   {PaymentSuccess: true, PaymentFailed: true, PaymentTimeout: true},
	PaymentSuccess:   {PaymentRefunded: true},
	PaymentFailed:    {},
	PaymentTimeout:   {},
	PaymentRefunded:  {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validNextPayment[from][to]
}

func (s PaymentStatus) Valid() bool {
	_, ok := validNextPayment[s]
	return ok
}

func (s PaymentStatus) IsTerminal() bool {
	return s.Valid() && len(validNextPayment[s]) == 0
}

func transitionError(entity string, from, to string) error {
	return &apperr.InvalidTransitionError{Entity: entity, From: from, To: to}
}

// CheckTransition returns an *apperr.InvalidTransitionError when the move
// is not allowed.
func CheckTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return transitionError("order", string(from), string(to))
	}
	return nil
}

func CheckPaymentTransition(from, to PaymentStatus) error {
	if !CanTransitionPayment(from, to) {
		return transitionError("payment", string(from), string(to))
	}
	return nil
}
