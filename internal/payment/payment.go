// Package payment owns payment attempts and the gateway callback ledger.
package payment

import (
	"context"
	"database/sql"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/order"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const txnPrefix = "pay_"

// OrderLocker is the part of the order repository a payment needs.
type OrderLocker interface {
	GetForUpdateTx(ctx context.Context, q db.DBTX, orderID int64) (*order.Order, error)
}

type Service interface {
	Initiate(ctx context.Context, orderID int64, requester order.Requester) (*Payment, error)
}

type service struct {
	db     *sql.DB
	repo   Repository
	orders OrderLocker
	newTxn func() string
}

func NewService(conn *sql.DB, repo Repository, orders OrderLocker) Service {
	return &service{
		db:     conn,
		repo:   repo,
		orders: orders,
		newTxn: func() string { return txnPrefix + uuid.NewString() },
	}
}

// Initiate opens a payment for a PENDING order. An attempt still waiting
// on the gateway is returned instead of creating a second one.
func (s *service) Initiate(ctx context.Context, orderID int64, requester order.Requester) (*Payment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Initiate"),
		zap.Int64("order_id", orderID),
	)

	var p *Payment
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		o, err := s.orders.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !requester.CanView(o.UserID) {
			return apperr.NotFound("order", orderID)
		}

		switch {
		case o.PaymentStatus == order.PaymentSuccess || o.PaymentStatus == order.PaymentRefunded:
			return &apperr.ValidationError{Field: "order_id", Reason: "order is already paid", Cause: ErrAlreadyPaid}
		case o.OrderStatus != order.StatusPending:
			return &apperr.ValidationError{Field: "order_id", Reason: "order is " + string(o.OrderStatus), Cause: ErrOrderNotPayable}
		}

		latest, err := s.repo.LatestByOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if latest != nil &&
			(latest.Status == order.PaymentInitiated || latest.Status == order.PaymentPending) &&
			latest.Amount.Equal(o.TotalAmount) {
			p = latest
			return nil
		}

		p = &Payment{
			OrderID:              o.ID,
			GatewayTransactionID: s.newTxn(),
			Amount:               o.TotalAmount,
			Status:               order.PaymentInitiated,
		}
		return s.repo.CreateTx(ctx, tx, p)
	})
	if err != nil {
		log.Warn("payment not initiated", zap.Error(err))
		return nil, err
	}

	log.Info("payment initiated",
		zap.Int64("payment_id", p.ID),
		zap.String("gateway_transaction_id", p.GatewayTransactionID),
	)
	return p, nil
}
