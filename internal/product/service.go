package product

import (
	"context"
	"errors"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/logger"

	"go.uber.org/zap"
)

// Catalog is what the cart and the checkout need from the product
// collaborator.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Catalog {
	return &service{repo: repo}
}

func (s *service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "GetProduct"),
		zap.Int64("product_id", id),
	)

	if id <= 0 {
		return nil, apperr.Validation("product_id", "must be a positive integer")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrProductNotFound) {
			log.Info("product not found")
		} else {
			log.Error("failed to get product", zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

func (s *service) GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	products, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get products",
			zap.String("layer", "service"),
			zap.String("method", "GetProducts"),
			zap.Int("count", len(ids)),
			zap.Error(err),
		)
		return nil, err
	}
	return products, nil
}
