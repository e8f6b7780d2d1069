package cart

import (
	"context"
	"fmt"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/product"
	"gst-checkout/internal/tax"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockReader is the part of the inventory ledger the cart consults before
// accepting a quantity. Nothing is reserved until checkout.
type StockReader interface {
	GetAvailableStock(ctx context.Context, productID int64) (int, error)
}

// Service defines the business logic for carts.
type Service interface {
	AddItem(ctx context.Context, owner Owner, productID int64, quantity int) (*CartItem, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, productID int64, quantity int) (*CartItem, error)
	RemoveItem(ctx context.Context, owner Owner, productID int64) error
	Clear(ctx context.Context, owner Owner) error
	GetSummary(ctx context.Context, owner Owner) (*Summary, error)
	MergeGuestCart(ctx context.Context, userID int64, guestSession uuid.UUID) (*Summary, error)
}

type service struct {
	repo    Repository
	catalog product.Catalog
	stock   StockReader
}

func NewService(repo Repository, catalog product.Catalog, stock StockReader) Service {
	return &service{repo: repo, catalog: catalog, stock: stock}
}

// AddItem snapshots the product's current price and GST on first add.
// Adding a product already in the cart only raises its quantity.
func (s *service) AddItem(ctx context.Context, owner Owner, productID int64, quantity int) (*CartItem, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddItem"),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)

	if quantity <= 0 {
		return nil, &apperr.ValidationError{Field: "quantity", Reason: "must be greater than zero", Cause: ErrInvalidQuantity}
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, &apperr.ValidationError{Field: "product_id", Reason: "product is not available", Cause: ErrProductNotAvailable}
	}
	if !tax.IsValidSlab(p.GSTPercentage) {
		log.Error("catalog product carries an invalid GST slab", zap.Int("gst_percentage", p.GSTPercentage))
		return nil, &apperr.ValidationError{Field: "gst_percentage", Reason: "product has an invalid GST slab", Cause: tax.ErrInvalidSlab}
	}

	c, err := s.repo.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetItem(ctx, c.ID, productID)
	if err != nil {
		return nil, err
	}

	finalQty := quantity
	if existing != nil {
		finalQty += existing.Quantity
	}

	if err := s.checkStock(ctx, p, finalQty); err != nil {
		return nil, err
	}

	var item *CartItem
	if existing == nil {
		item, err = s.repo.CreateItem(ctx, CreateItemParams{
			CartID:        c.ID,
			ProductID:     productID,
			Quantity:      quantity,
			BasePrice:     p.BasePrice,
			GSTPercentage: p.GSTPercentage,
		})
	} else {
		item, err = s.repo.UpdateItemQuantity(ctx, c.ID, productID, finalQty)
	}
	if err != nil {
		return nil, err
	}

	item.ProductName = p.Name
	log.Info("cart item saved", zap.Int("cart_quantity", item.Quantity))
	return item, nil
}

// UpdateItemQuantity sets an absolute quantity. Zero or less removes the
// line and returns nil.
func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, productID int64, quantity int) (*CartItem, error) {
	c, err := s.repo.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCartItemNotFound
	}

	if quantity <= 0 {
		return nil, s.repo.RemoveItem(ctx, c.ID, productID)
	}

	existing, err := s.repo.GetItem(ctx, c.ID, productID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCartItemNotFound
	}

	if quantity > existing.Quantity {
		p, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err := s.checkStock(ctx, p, quantity); err != nil {
			return nil, err
		}
	}

	item, err := s.repo.UpdateItemQuantity(ctx, c.ID, productID, quantity)
	if err != nil {
		return nil, err
	}
	item.ProductName = existing.ProductName
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, productID int64) error {
	c, err := s.repo.GetCart(ctx, owner)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrCartItemNotFound
	}
	return s.repo.RemoveItem(ctx, c.ID, productID)
}

// Clear is a no-op for an owner without a cart.
func (s *service) Clear(ctx context.Context, owner Owner) error {
	c, err := s.repo.GetCart(ctx, owner)
	if err != nil || c == nil {
		return err
	}

	n, err := s.repo.ClearItems(ctx, c.ID)
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("cart cleared",
		zap.String("layer", "service"),
		zap.String("method", "Clear"),
		zap.String("cart_id", c.ID.String()),
		zap.Int64("removed", n),
	)
	return nil
}

func (s *service) GetSummary(ctx context.Context, owner Owner) (*Summary, error) {
	c, err := s.repo.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return BuildSummary(nil, nil)
	}

	items, err := s.repo.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return BuildSummary(&c.ID, items)
}

// MergeGuestCart folds a guest session's cart into the user's cart after
// sign-in. A missing guest cart leaves the user's cart as it is.
func (s *service) MergeGuestCart(ctx context.Context, userID int64, guestSession uuid.UUID) (*Summary, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthenticated
	}

	userOwner := UserOwner(userID)

	guestCart, err := s.repo.GetCart(ctx, GuestOwner(guestSession))
	if err != nil {
		return nil, err
	}
	if guestCart != nil {
		userCart, err := s.repo.GetOrCreateCart(ctx, userOwner)
		if err != nil {
			return nil, err
		}
		if err := s.repo.MergeInto(ctx, guestCart.ID, userCart.ID); err != nil {
			return nil, err
		}
	}

	return s.GetSummary(ctx, userOwner)
}

func (s *service) checkStock(ctx context.Context, p *product.Product, want int) error {
	available, err := s.stock.GetAvailableStock(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("check stock: %w", err)
	}
	if available < want {
		return &apperr.InsufficientStockError{Items: []apperr.StockShortfall{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   want,
			Available:   available,
		}}}
	}
	return nil
}

