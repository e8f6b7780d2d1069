package inventory

import "gst-checkout/internal/apperr"

// Stock is one product's on-hand and reserved counts. Transitions return a
// new value and never mutate the receiver.
type Stock struct {
	ProductID        int64
	StockQuantity    int
	ReservedQuantity int
}

func (s Stock) Available() int {
	return s.StockQuantity - s.ReservedQuantity
}

// Reserve holds qty units for a pending order.
func (s Stock) Reserve(qty int) (Stock, error) {
	if err := validateQuantity(qty); err != nil {
		return s, err
	}
	if s.Available() < qty {
		return s, ErrInsufficientStock
	}
	s.ReservedQuantity += qty
	return s, nil
}

// Commit turns qty reserved units into a sale.
func (s Stock) Commit(qty int) (Stock, error) {
	if err := validateQuantity(qty); err != nil {
		return s, err
	}
	if s.ReservedQuantity < qty {
		return s, reservedShortfall(qty, s.ReservedQuantity)
	}
	s.StockQuantity -= qty
	s.ReservedQuantity -= qty
	return s, nil
}

// Release returns qty reserved units to the available pool.
func (s Stock) Release(qty int) (Stock, error) {
	if err := validateQuantity(qty); err != nil {
		return s, err
	}
	if s.ReservedQuantity < qty {
		return s, reservedShortfall(qty, s.ReservedQuantity)
	}
	s.ReservedQuantity -= qty
	return s, nil
}

// Line is one product a checkout wants to take.
type Line struct {
	ProductID   int64
	ProductName string
	Quantity    int
}

func validateQuantity(qty int) error {
	if qty <= 0 {
		return &apperr.ValidationError{Field: "quantity", Reason: "must be greater than zero", Cause: ErrInvalidQuantity}
	}
	return nil
}
