package tax

import (
	"errors"
	"testing"

	"gst-checkout/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func TestCalculateItemTax(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		res, err := CalculateItemTax(money("99.99"), 18, 3)
		require.NoError(t, err)

		assertMoney(t, "299.97", res.Subtotal)
		assertMoney(t, "53.99", res.GSTAmount)
		assertMoney(t, "353.96", res.TotalAmount)
		assert.Equal(t, 18, res.GSTPercentage)
	})

	t.Run("Rounds half away from zero", func(t *testing.T) {
		res, err := CalculateItemTax(money("10.005"), 0, 1)
		require.NoError(t, err)

		assertMoney(t, "10.01", res.Subtotal)
		assertMoney(t, "0.00", res.GSTAmount)
	})

	t.Run("Rounds incrementally", func(t *testing.T) {
		// 0.125 -> 0.13 before tax is applied; 18% of 0.13 is 0.0234 -> 0.02
		res, err := CalculateItemTax(money("0.125"), 18, 1)
		require.NoError(t, err)

		assertMoney(t, "0.13", res.Subtotal)
		assertMoney(t, "0.02", res.GSTAmount)
		assertMoney(t, "0.15", res.TotalAmount)
	})

	t.Run("InvalidSlab", func(t *testing.T) {
		_, err := CalculateItemTax(money("100"), 10, 1)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSlab))
		var verr *apperr.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "gst_percentage", verr.Field)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		for _, qty := range []int{0, -1} {
			_, err := CalculateItemTax(money("100"), 18, qty)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "quantity", verr.Field)
		}
	})

	t.Run("NegativePrice", func(t *testing.T) {
		_, err := CalculateItemTax(money("-100"), 18, 1)

		var verr *apperr.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "base_price", verr.Field)
	})
}

func TestCalculateItemTax_TotalIsSumOfParts(t *testing.T) {
	prices := []string{"0", "0.01", "0.99", "1.05", "49.50", "99.99", "123.45", "999.99", "10000"}

	for _, slab := range Slabs {
		for _, p := range prices {
			for qty := 1; qty <= 7; qty++ {
				res, err := CalculateItemTax(money(p), slab, qty)
				require.NoError(t, err)

				assert.True(t, res.TotalAmount.Equal(res.Subtotal.Add(res.GSTAmount)),
					"slab=%d price=%s qty=%d", slab, p, qty)
			}
		}
	}
}

func TestReverseCalculate_RecoversBasePrice(t *testing.T) {
	prices := []string{"0", "0.01", "1.99", "49.50", "99.99", "123.45", "999.99", "74999.00"}

	for _, slab := range Slabs {
		for _, p := range prices {
			forward, err := CalculateItemTax(money(p), slab, 1)
			require.NoError(t, err)

			back, err := ReverseCalculate(forward.TotalAmount, slab)
			require.NoError(t, err)

			assert.True(t, WithinTolerance(back.Subtotal, money(p)), "slab=%d price=%s got=%s", slab, p, back.Subtotal)
		}
	}
}

func TestReverseCalculate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		res, err := ReverseCalculate(money("118"), 18)
		require.NoError(t, err)

		assertMoney(t, "100.00", res.Subtotal)
		assertMoney(t, "18.00", res.GSTAmount)
	})

	t.Run("GST absorbs the rounding remainder", func(t *testing.T) {
		res, err := ReverseCalculate(money("105.50"), 5)
		require.NoError(t, err)

		assertMoney(t, "100.48", res.Subtotal)
		assertMoney(t, "5.02", res.GSTAmount)
		assert.True(t, res.Subtotal.Add(res.GSTAmount).Equal(money("105.50")))
	})

	t.Run("InvalidSlab", func(t *testing.T) {
		_, err := ReverseCalculate(money("118"), 15)
		assert.True(t, errors.Is(err, ErrInvalidSlab))
	})

	t.Run("NegativeTotal", func(t *testing.T) {
		_, err := ReverseCalculate(money("-1"), 18)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})
}

func TestCalculateCartTax(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		res, err := CalculateCartTax(nil)
		require.NoError(t, err)

		assert.True(t, res.Subtotal.IsZero())
		assert.True(t, res.TotalGST.IsZero())
		assert.True(t, res.TotalAmount.IsZero())
		assert.NotNil(t, res.GSTBreakup)
		assert.Empty(t, res.GSTBreakup)
	})

	t.Run("Groups and sorts by slab", func(t *testing.T) {
		res, err := CalculateCartTax([]LineItem{
			{BasePrice: money("50"), GSTPercentage: 28, Quantity: 3},
			{BasePrice: money("100"), GSTPercentage: 5, Quantity: 1},
			{BasePrice: money("200"), GSTPercentage: 18, Quantity: 2},
		})
		require.NoError(t, err)

		assertMoney(t, "650.00", res.Subtotal)
		assertMoney(t, "119.00", res.TotalGST)
		assertMoney(t, "769.00", res.TotalAmount)

		require.Len(t, res.GSTBreakup, 3)
		assert.Equal(t, 5, res.GSTBreakup[0].GSTPercentage)
		assert.Equal(t, 18, res.GSTBreakup[1].GSTPercentage)
		assert.Equal(t, 28, res.GSTBreakup[2].GSTPercentage)
		assertMoney(t, "400.00", res.GSTBreakup[1].TaxableAmount)
		assertMoney(t, "72.00", res.GSTBreakup[1].GSTAmount)
	})

	t.Run("Aggregates same slab", func(t *testing.T) {
		res, err := CalculateCartTax([]LineItem{
			{BasePrice: money("10.10"), GSTPercentage: 12, Quantity: 1},
			{BasePrice: money("20.20"), GSTPercentage: 12, Quantity: 2},
		})
		require.NoError(t, err)

		require.Len(t, res.GSTBreakup, 1)
		assertMoney(t, "50.50", res.GSTBreakup[0].TaxableAmount)
		// 1.21 + 4.85, summed per line
		assertMoney(t, "6.06", res.GSTBreakup[0].GSTAmount)
		assert.True(t, res.TotalAmount.Equal(res.Subtotal.Add(res.TotalGST)))
	})

	t.Run("Invalid line", func(t *testing.T) {
		_, err := CalculateCartTax([]LineItem{{BasePrice: money("10"), GSTPercentage: 7, Quantity: 1}})
		assert.True(t, errors.Is(err, ErrInvalidSlab))
	})
}

func TestCalculateWithDiscount(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		res, err := CalculateWithDiscount(money("1000"), 18, 2, money("10"))
		require.NoError(t, err)

		assertMoney(t, "1800.00", res.Subtotal)
		assertMoney(t, "324.00", res.GSTAmount)
		assertMoney(t, "2124.00", res.TotalAmount)
	})

	t.Run("Full discount", func(t *testing.T) {
		res, err := CalculateWithDiscount(money("1000"), 18, 1, money("100"))
		require.NoError(t, err)
		assert.True(t, res.TotalAmount.IsZero())
	})

	t.Run("Out of range", func(t *testing.T) {
		for _, d := range []string{"-1", "100.01"} {
			_, err := CalculateWithDiscount(money("1000"), 18, 1, money(d))

			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "discount_percentage", verr.Field)
		}
	})
}

func TestValidateTaxCalculation(t *testing.T) {
	assert.True(t, ValidateTaxCalculation(money("100"), 18, 1, money("18"), money("118")))
	assert.True(t, ValidateTaxCalculation(money("100"), 18, 1, money("18.01"), money("118.01")))
	assert.False(t, ValidateTaxCalculation(money("100"), 18, 1, money("18"), money("117")))
	assert.False(t, ValidateTaxCalculation(money("100"), 18, 1, money("0"), money("100")))
	assert.False(t, ValidateTaxCalculation(money("100"), 10, 1, money("10"), money("110")))
}
