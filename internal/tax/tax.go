// Package tax implements GST arithmetic over the fixed Indian slabs. Every
// function is pure: no I/O and no retained state.
package tax

import (
	"errors"
	"sort"

	"gst-checkout/internal/apperr"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSlab  = errors.New("invalid GST slab")
	ErrInvalidInput = errors.New("invalid tax input")
)

// Slabs lists the GST rates a line item may carry, ascending.
var Slabs = []int{0, 5, 12, 18, 28}

var (
	hundred = decimal.NewFromInt(100)
	// Tolerance is the largest difference two money amounts may have and
	// still be considered equal.
	Tolerance = decimal.New(1, -2)
)

type ItemTax struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GSTPercentage int             `json:"gst_percentage"`
}

type LineItem struct {
	BasePrice     decimal.Decimal
	GSTPercentage int
	Quantity      int
}

type SlabBreakup struct {
	GSTPercentage int             `json:"gst_percentage"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
}

type CartTax struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TotalGST    decimal.Decimal `json:"total_gst"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	GSTBreakup  []SlabBreakup   `json:"gst_breakup"`
}

type ReverseTax struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GSTPercentage int             `json:"gst_percentage"`
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether a and b differ by at most one paisa.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

func IsValidSlab(gstPercentage int) bool {
	for _, s := range Slabs {
		if s == gstPercentage {
			return true
		}
	}
	return false
}

func validateSlab(gstPercentage int) error {
	if !IsValidSlab(gstPercentage) {
		return &apperr.ValidationError{
			Field:  "gst_percentage",
			Reason: "must be one of 0, 5, 12, 18, 28",
			Cause:  ErrInvalidSlab,
		}
	}
	return nil
}

func invalidInput(field, reason string) error {
	return &apperr.ValidationError{Field: field, Reason: reason, Cause: ErrInvalidInput}
}

// CalculateItemTax rounds subtotal, then GST, then total, so that sums of
// rounded line values reproduce exactly downstream.
func CalculateItemTax(basePrice decimal.Decimal, gstPercentage, quantity int) (ItemTax, error) {
	if err := validateSlab(gstPercentage); err != nil {
		return ItemTax{}, err
	}
	if basePrice.IsNegative() {
		return ItemTax{}, invalidInput("base_price", "must not be negative")
	}
	if quantity <= 0 {
		return ItemTax{}, invalidInput("quantity", "must be greater than zero")
	}

	subtotal := Round2(basePrice.Mul(decimal.NewFromInt(int64(quantity))))
	gst := Round2(subtotal.Mul(decimal.NewFromInt(int64(gstPercentage))).Div(hundred))
	total := Round2(subtotal.Add(gst))

	return ItemTax{
		Subtotal:      subtotal,
		GSTAmount:     gst,
		TotalAmount:   total,
		GSTPercentage: gstPercentage,
	}, nil
}

// CalculateCartTax sums per-line rounded values and groups them by slab.
func CalculateCartTax(items []LineItem) (CartTax, error) {
	result := CartTax{
		Subtotal:    decimal.Zero,
		TotalGST:    decimal.Zero,
		TotalAmount: decimal.Zero,
		GSTBreakup:  []SlabBreakup{},
	}

	bySlab := make(map[int]*SlabBreakup)
	for _, item := range items {
		line, err := CalculateItemTax(item.BasePrice, item.GSTPercentage, item.Quantity)
		if err != nil {
			return CartTax{}, err
		}

		result.Subtotal = result.Subtotal.Add(line.Subtotal)
		result.TotalGST = result.TotalGST.Add(line.GSTAmount)
		result.TotalAmount = result.TotalAmount.Add(line.TotalAmount)

		slab, ok := bySlab[item.GSTPercentage]
		if !ok {
			slab = &SlabBreakup{
				GSTPercentage: item.GSTPercentage,
				TaxableAmount: decimal.Zero,
				GSTAmount:     decimal.Zero,
			}
			bySlab[item.GSTPercentage] = slab
		}
		slab.TaxableAmount = slab.TaxableAmount.Add(line.Subtotal)
		slab.GSTAmount = slab.GSTAmount.Add(line.GSTAmount)
	}

	for _, slab := range bySlab {
		result.GSTBreakup = append(result.GSTBreakup, *slab)
	}
	sort.Slice(result.GSTBreakup, func(i, j int) bool {
		return result.GSTBreakup[i].GSTPercentage < result.GSTBreakup[j].GSTPercentage
	})

	return result, nil
}

// CalculateWithDiscount applies discountPct to the unit price before tax.
func CalculateWithDiscount(basePrice decimal.Decimal, gstPercentage, quantity int, discountPct decimal.Decimal) (ItemTax, error) {
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return ItemTax{}, invalidInput("discount_percentage", "must be between 0 and 100")
	}

	factor := hundred.Sub(discountPct).Div(hundred)
	discounted := Round2(basePrice.Mul(factor))

	return CalculateItemTax(discounted, gstPercentage, quantity)
}

// ReverseCalculate splits a GST-inclusive amount into its taxable part and tax.
func ReverseCalculate(totalAmount decimal.Decimal, gstPercentage int) (ReverseTax, error) {
	if err := validateSlab(gstPercentage); err != nil {
		return ReverseTax{}, err
	}
	if totalAmount.IsNegative() {
		return ReverseTax{}, invalidInput("total_amount", "must not be negative")
	}

	divisor := hundred.Add(decimal.NewFromInt(int64(gstPercentage))).Div(hundred)
	subtotal := Round2(totalAmount.Div(divisor))

	return ReverseTax{
		Subtotal:      subtotal,
		GSTAmount:     totalAmount.Sub(subtotal),
		TotalAmount:   totalAmount,
		GSTPercentage: gstPercentage,
	}, nil
}

// ValidateTaxCalculation recomputes a line and compares it with what a
// client claimed. Any input the engine rejects is reported as invalid.
func ValidateTaxCalculation(basePrice decimal.Decimal, gstPercentage, quantity int, claimedGST, claimedTotal decimal.Decimal) bool {
	expected, err := CalculateItemTax(basePrice, gstPercentage, quantity)
	if err != nil {
		return false
	}

	return WithinTolerance(expected.GSTAmount, claimedGST) &&
		WithinTolerance(expected.TotalAmount, claimedTotal)
}
