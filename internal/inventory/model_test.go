package inventory

import (
	"errors"
	"testing"

	"gst-checkout/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStock_Reserve(t *testing.T) {
	s := Stock{ProductID: 1, StockQuantity: 10, ReservedQuantity: 3}

	t.Run("Success", func(t *testing.T) {
		next, err := s.Reserve(7)
		require.NoError(t, err)
		assert.Equal(t, 10, next.ReservedQuantity)
		assert.Equal(t, 0, next.Available())
		assert.Equal(t, 3, s.ReservedQuantity, "receiver must not change")
	})

	t.Run("Insufficient", func(t *testing.T) {
		next, err := s.Reserve(8)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, s, next)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		for _, qty := range []int{0, -2} {
			_, err := s.Reserve(qty)
			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		}
	})
}

func TestStock_Commit(t *testing.T) {
	s := Stock{ProductID: 1, StockQuantity: 10, ReservedQuantity: 4}

	next, err := s.Commit(4)
	require.NoError(t, err)
	assert.Equal(t, 6, next.StockQuantity)
	assert.Equal(t, 0, next.ReservedQuantity)
	assert.Equal(t, s.Available(), next.Available(), "commit keeps availability unchanged")

	_, err = s.Commit(5)
	assert.ErrorIs(t, err, ErrNotEnoughReserved)
}

func TestStock_Release(t *testing.T) {
	s := Stock{ProductID: 1, StockQuantity: 10, ReservedQuantity: 4}

	next, err := s.Release(3)
	require.NoError(t, err)
	assert.Equal(t, 10, next.StockQuantity)
	assert.Equal(t, 1, next.ReservedQuantity)

	_, err = s.Release(5)
	assert.ErrorIs(t, err, ErrNotEnoughReserved)

	_, err = s.Release(0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestStock_ReservedStaysWithinStockAcrossSequences(t *testing.T) {
	s := Stock{ProductID: 1, StockQuantity: 5}
	ops := []struct {
		name string
		fn   func(Stock, int) (Stock, error)
		qty  int
	}{
		{"reserve", Stock.Reserve, 3},
		{"reserve", Stock.Reserve, 3},
		{"commit", Stock.Commit, 2},
		{"release", Stock.Release, 2},
		{"release", Stock.Release, 1},
		{"reserve", Stock.Reserve, 3},
		{"commit", Stock.Commit, 3},
		{"reserve", Stock.Reserve, 1},
	}

	for _, op := range ops {
		if next, err := op.fn(s, op.qty); err == nil {
			s = next
		}
		assert.GreaterOrEqual(t, s.ReservedQuantity, 0, op.name)
		assert.LessOrEqual(t, s.ReservedQuantity, s.StockQuantity, op.name)
		assert.GreaterOrEqual(t, s.Available(), 0, op.name)
	}
	assert.Equal(t, Stock{ProductID: 1, StockQuantity: 0, ReservedQuantity: 0}, s)
}
