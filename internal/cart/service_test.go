package cart

import (
	"context"
	"errors"
	"testing"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/db"
	"gst-checkout/internal/product"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetCart(ctx context.Context, owner Owner) (*Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Cart), args.Error(1)
}

func (m *MockRepository) GetOrCreateCart(ctx context.Context, owner Owner) (*Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Cart), args.Error(1)
}

func (m *MockRepository) GetItem(ctx context.Context, cartID uuid.UUID, productID int64) (*CartItem, error) {
	args := m.Called(ctx, cartID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) CreateItem(ctx context.Context, params CreateItemParams) (*CartItem, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*CartItem, error) {
	args := m.Called(ctx, cartID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error {
	return m.Called(ctx, cartID, productID).Error(0)
}

func (m *MockRepository) ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CartItem), args.Error(1)
}

func (m *MockRepository) MergeInto(ctx context.Context, fromCartID, toCartID uuid.UUID) error {
	return m.Called(ctx, fromCartID, toCartID).Error(0)
}

func (m *MockRepository) LockItemsTx(ctx context.Context, q db.DBTX, cartID uuid.UUID) ([]CartItem, error) {
	args := m.Called(ctx, q, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CartItem), args.Error(1)
}

func (m *MockRepository) DeleteItemsTx(ctx context.Context, q db.DBTX, cartID uuid.UUID, itemIDs []int64) error {
	return m.Called(ctx, q, cartID, itemIDs).Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockCatalog) GetProducts(ctx context.Context, ids []int64) (map[int64]*product.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*product.Product), args.Error(1)
}

type MockStock struct {
	mock.Mock
}

func (m *MockStock) GetAvailableStock(ctx context.Context, productID int64) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func newTestService() (Service, *MockRepository, *MockCatalog, *MockStock) {
	repo := new(MockRepository)
	catalog := new(MockCatalog)
	stock := new(MockStock)
	return NewService(repo, catalog, stock), repo, catalog, stock
}

var kettle = &product.Product{
	ID:            10,
	Name:          "Kettle",
	SKU:           "KT-10",
	BasePrice:     decimal.RequireFromString("1299.00"),
	GSTPercentage: 18,
	IsActive:      true,
}

// --- Tests ---

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()
	owner := UserOwner(1)
	userCart := &Cart{ID: uuid.New()}

	t.Run("New item snapshots price and GST", func(t *testing.T) {
		svc, repo, catalog, stock := newTestService()

		catalog.On("GetProduct", ctx, int64(10)).Return(kettle, nil)
		repo.On("GetOrCreateCart", ctx, owner).Return(userCart, nil)
		repo.On("GetItem", ctx, userCart.ID, int64(10)).Return(nil, nil)
		stock.On("GetAvailableStock", ctx, int64(10)).Return(5, nil)
		repo.On("CreateItem", ctx, CreateItemParams{
			CartID:        userCart.ID,
			ProductID:     10,
			Quantity:      2,
			BasePrice:     kettle.BasePrice,
			GSTPercentage: 18,
		}).Return(&CartItem{ID: 1, ProductID: 10, Quantity: 2, BasePrice: kettle.BasePrice, GSTPercentage: 18}, nil)

		item, err := svc.AddItem(ctx, owner, 10, 2)

		require.NoError(t, err)
		assert.Equal(t, "Kettle", item.ProductName)
		assert.Equal(t, 2, item.Quantity)
		repo.AssertExpectations(t)
	})

	t.Run("Existing item adds quantity", func(t *testing.T) {
		svc, repo, catalog, stock := newTestService()

		catalog.On("GetProduct", ctx, int64(10)).Return(kettle, nil)
		repo.On("GetOrCreateCart", ctx, owner).Return(userCart, nil)
		repo.On("GetItem", ctx, userCart.ID, int64(10)).Return(&CartItem{ID: 1, Quantity: 3}, nil)
		stock.On("GetAvailableStock", ctx, int64(10)).Return(5, nil)
		repo.On("UpdateItemQuantity", ctx, userCart.ID, int64(10), 5).Return(&CartItem{ID: 1, Quantity: 5}, nil)

		item, err := svc.AddItem(ctx, owner, 10, 2)

		require.NoError(t, err)
		assert.Equal(t, 5, item.Quantity)
		repo.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
	})

	t.Run("Insufficient stock", func(t *testing.T) {
		svc, repo, catalog, stock := newTestService()

		catalog.On("GetProduct", ctx, int64(10)).Return(kettle, nil)
		repo.On("GetOrCreateCart", ctx, owner).Return(userCart, nil)
		repo.On("GetItem", ctx, userCart.ID, int64(10)).Return(&CartItem{ID: 1, Quantity: 4}, nil)
		stock.On("GetAvailableStock", ctx, int64(10)).Return(5, nil)

		_, err := svc.AddItem(ctx, owner, 10, 2)

		var stockErr *apperr.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		require.Len(t, stockErr.Items, 1)
		assert.Equal(t, 6, stockErr.Items[0].Requested)
		assert.Equal(t, 5, stockErr.Items[0].Available)
		repo.AssertNotCalled(t, "UpdateItemQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid quantity", func(t *testing.T) {
		svc, _, catalog, _ := newTestService()

		_, err := svc.AddItem(ctx, owner, 10, 0)

		assert.ErrorIs(t, err, ErrInvalidQuantity)
		catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})

	t.Run("Inactive product", func(t *testing.T) {
		svc, repo, catalog, _ := newTestService()
		inactive := *kettle
		inactive.IsActive = false
		catalog.On("GetProduct", ctx, int64(10)).Return(&inactive, nil)

		_, err := svc.AddItem(ctx, owner, 10, 1)

		assert.ErrorIs(t, err, ErrProductNotAvailable)
		repo.AssertNotCalled(t, "GetOrCreateCart", mock.Anything, mock.Anything)
	})

	t.Run("Unknown product", func(t *testing.T) {
		svc, _, catalog, _ := newTestService()
		catalog.On("GetProduct", ctx, int64(99)).Return(nil, apperr.NotFound("product", 99))

		_, err := svc.AddItem(ctx, owner, 99, 1)

		assert.ErrorIs(t, err, apperr.ErrProductNotFound)
	})
}

func TestService_UpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	owner := UserOwner(1)
	userCart := &Cart{ID: uuid.New()}

	t.Run("Zero removes", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.On("GetCart", ctx, owner).Return(userCart, nil)
		repo.On("RemoveItem", ctx, userCart.ID, int64(10)).Return(nil)

		item, err := svc.UpdateItemQuantity(ctx, owner, 10, 0)

		assert.NoError(t, err)
		assert.Nil(t, item)
		repo.AssertExpectations(t)
	})

	t.Run("Decrease skips stock check", func(t *testing.T) {
		svc, repo, catalog, stock := newTestService()
		repo.On("GetCart", ctx, owner).Return(userCart, nil)
		repo.On("GetItem", ctx, userCart.ID, int64(10)).Return(&CartItem{Quantity: 4, ProductName: "Kettle"}, nil)
		repo.On("UpdateItemQuantity", ctx, userCart.ID, int64(10), 2).Return(&CartItem{Quantity: 2}, nil)

		item, err := svc.UpdateItemQuantity(ctx, owner, 10, 2)

		require.NoError(t, err)
		assert.Equal(t, "Kettle", item.ProductName)
		catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
		stock.AssertNotCalled(t, "GetAvailableStock", mock.Anything, mock.Anything)
	})

	t.Run("Increase beyond stock", func(t *testing.T) {
		svc, repo, catalog, stock := newTestService()
		repo.On("GetCart", ctx, owner).Return(userCart, nil)
		repo.On("GetItem", ctx, userCart.ID, int64(10)).Return(&CartItem{Quantity: 1}, nil)
		catalog.On("GetProduct", ctx, int64(10)).Return(kettle, nil)
		stock.On("GetAvailableStock", ctx, int64(10)).Return(3, nil)

		_, err := svc.UpdateItemQuantity(ctx, owner, 10, 4)

		var stockErr *apperr.InsufficientStockError
		assert.True(t, errors.As(err, &stockErr))
	})

	t.Run("No cart", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.On("GetCart", ctx, owner).Return(nil, nil)

		_, err := svc.UpdateItemQuantity(ctx, owner, 10, 1)

		assert.ErrorIs(t, err, apperr.ErrCartItemNotFound)
	})
}

func TestService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	owner := UserOwner(1)
	userCart := &Cart{ID: uuid.New()}

	svc, repo, _, _ := newTestService()
	repo.On("GetCart", ctx, owner).Return(userCart, nil)
	repo.On("RemoveItem", ctx, userCart.ID, int64(10)).Return(ErrCartItemNotFound)

	err := svc.RemoveItem(ctx, owner, 10)

	assert.ErrorIs(t, err, apperr.ErrCartItemNotFound)
}

func TestService_Clear(t *testing.T) {
	ctx := context.Background()
	owner := UserOwner(1)

	t.Run("Success", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		userCart := &Cart{ID: uuid.New()}
		repo.On("GetCart", ctx, owner).Return(userCart, nil)
		repo.On("ClearItems", ctx, userCart.ID).Return(int64(3), nil)

		assert.NoError(t, svc.Clear(ctx, owner))
		repo.AssertExpectations(t)
	})

	t.Run("No cart", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.On("GetCart", ctx, owner).Return(nil, nil)

		assert.NoError(t, svc.Clear(ctx, owner))
		repo.AssertNotCalled(t, "ClearItems", mock.Anything, mock.Anything)
	})
}

func TestService_GetSummary(t *testing.T) {
	ctx := context.Background()
	owner := UserOwner(1)

	t.Run("No cart is an empty summary", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.On("GetCart", ctx, owner).Return(nil, nil)

		s, err := svc.GetSummary(ctx, owner)

		require.NoError(t, err)
		assert.True(t, s.IsEmpty())
		assert.Nil(t, s.CartID)
	})

	t.Run("Uses the snapshot, not the catalog", func(t *testing.T) {
		svc, repo, catalog, _ := newTestService()
		userCart := &Cart{ID: uuid.New()}
		repo.On("GetCart", ctx, owner).Return(userCart, nil)
		repo.On("ListItems", ctx, userCart.ID).Return([]CartItem{
			{ProductID: 10, Quantity: 1, BasePrice: decimal.NewFromInt(1000), GSTPercentage: 18},
		}, nil)

		s, err := svc.GetSummary(ctx, owner)

		require.NoError(t, err)
		assert.Equal(t, "1180.00", s.TotalAmount.StringFixed(2))
		catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})
}

func TestService_MergeGuestCart(t *testing.T) {
	ctx := context.Background()
	session := uuid.New()
	guestCart := &Cart{ID: uuid.New()}
	userCart := &Cart{ID: uuid.New()}

	t.Run("Success", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.On("GetCart", ctx, GuestOwner(session)).Return(guestCart, nil)
		repo.On("GetOrCreateCart", ctx, UserOwner(1)).Return(userCart, nil)
		repo.On("MergeInto", ctx, guestCart.ID, userCart.ID).Return(nil)
		repo.On("GetCart", ctx, UserOwner(1)).Return(userCart, nil)
		repo.On("ListItems", ctx, userCart.ID).Return([]CartItem{}, nil)

		s, err := svc.MergeGuestCart(ctx, 1, session)

		require.NoError(t, err)
		assert.Equal(t, &userCart.ID, s.CartID)
		repo.AssertExpectations(t)
	})

	t.Run("No guest cart", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.On("GetCart", ctx, GuestOwner(session)).Return(nil, nil)
		repo.On("GetCart", ctx, UserOwner(1)).Return(nil, nil)

		_, err := svc.MergeGuestCart(ctx, 1, session)

		require.NoError(t, err)
		repo.AssertNotCalled(t, "MergeInto", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		svc, _, _, _ := newTestService()

		_, err := svc.MergeGuestCart(ctx, 0, session)

		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})
}
