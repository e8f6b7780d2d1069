// Package webhook applies payment gateway callbacks exactly once.
package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"
	"gst-checkout/internal/order"
	"gst-checkout/internal/outbox"
	"gst-checkout/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	OutcomeProcessed         = "processed"
	OutcomeAlreadyProcessed  = "already_processed"
	OutcomeInvalidSignature  = "invalid_signature"
	OutcomeInvalidPayload    = "invalid_payload"
	OutcomeIgnoredTransition = "ignored_transition"
	OutcomePaymentNotFound   = "payment_not_found"
	OutcomeError             = "error"
)

// Payload is the body the gateway posts.
type Payload struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
}

func (p Payload) validate() error {
	switch {
	case strings.TrimSpace(p.EventID) == "":
		return errors.New("event_id is required")
	case strings.TrimSpace(p.TransactionID) == "":
		return errors.New("transaction_id is required")
	}
	return nil
}

type Ack struct {
	Acknowledged bool   `json:"acknowledged"`
	Outcome      string `json:"-"`
}

// OrderStore is the slice of the order repository the processor drives.
type OrderStore interface {
	GetForUpdateTx(ctx context.Context, q db.DBTX, orderID int64) (*order.Order, error)
	UpdateStatusTx(ctx context.Context, q db.DBTX, orderID int64, os order.OrderStatus, ps order.PaymentStatus) (time.Time, error)
}

type Processor struct {
	db       *sql.DB
	secret   []byte
	payments payment.Repository
	orders   OrderStore
	outbox   outbox.Repository
	cache    order.StatusCache
	metrics  *metrics.Metrics
}

func NewProcessor(conn *sql.DB, secret string, payments payment.Repository, orders OrderStore, ob outbox.Repository, cache order.StatusCache, m *metrics.Metrics) *Processor {
	if cache == nil {
		cache = order.NoopStatusCache{}
	}
	return &Processor{
		db:       conn,
		secret:   []byte(secret),
		payments: payments,
		orders:   orders,
		outbox:   ob,
		cache:    cache,
		metrics:  m,
	}
}

// MapGatewayStatus folds the gateway's free-text status onto ours.
// Anything unrecognised is PENDING.
func MapGatewayStatus(s string) order.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "completed", "captured":
		return order.PaymentSuccess
	case "failed", "error", "declined":
		return order.PaymentFailed
	default:
		return order.PaymentPending
	}
}

// Process verifies, deduplicates and applies one callback. Signature and
// duplicate failures come back as unacknowledged or no-op Acks with a nil
// error. A missing payment is returned as payment.ErrPaymentNotFound and
// leaves no trace, so the event can be replayed once the data is fixed.
func (p *Processor) Process(ctx context.Context, raw []byte, signature string) (Ack, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("method", "Process"),
	)

	if !payment.Verify(p.secret, raw, signature) {
		log.Warn("webhook signature mismatch")
		p.metrics.WebhookOutcome(OutcomeInvalidSignature)
		return Ack{Acknowledged: false, Outcome: OutcomeInvalidSignature}, nil
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Warn("webhook payload is not valid JSON", zap.Error(err))
		p.metrics.WebhookOutcome(OutcomeInvalidPayload)
		return Ack{Acknowledged: false, Outcome: OutcomeInvalidPayload}, nil
	}
	if err := payload.validate(); err != nil {
		log.Warn("webhook payload rejected", zap.Error(err))
		p.metrics.WebhookOutcome(OutcomeInvalidPayload)
		return Ack{Acknowledged: false, Outcome: OutcomeInvalidPayload}, nil
	}

	log = log.With(
		zap.String("event_id", payload.EventID),
		zap.String("transaction_id", payload.TransactionID),
		zap.String("gateway_status", payload.Status),
	)

	var (
		outcome string
		changed *order.StatusView
	)
	err := db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		var err error
		outcome, changed, err = p.apply(ctx, tx, log, raw, payload)
		return err
	})
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			log.Error("webhook references an unknown payment", zap.Error(err))
			p.metrics.WebhookOutcome(OutcomePaymentNotFound)
		} else {
			log.Error("failed to process webhook", zap.Error(err))
			p.metrics.WebhookOutcome(OutcomeError)
		}
		return Ack{}, err
	}

	if changed != nil {
		p.cache.Set(ctx, *changed)
	}
	p.metrics.WebhookOutcome(outcome)
	log.Info("webhook handled", zap.String("outcome", outcome))
	return Ack{Acknowledged: true, Outcome: outcome}, nil
}

func (p *Processor) apply(ctx context.Context, tx *sql.Tx, log *zap.Logger, raw []byte, payload Payload) (string, *order.StatusView, error) {
	eventID, duplicate, err := p.payments.SaveWebhookEventTx(ctx, tx, payment.WebhookEvent{
		WebhookID:     payload.EventID,
		EventType:     payload.EventType,
		TransactionID: payload.TransactionID,
		Payload:       raw,
	})
	if err != nil {
		return "", nil, err
	}
	if duplicate {
		return OutcomeAlreadyProcessed, nil, nil
	}

	pay, err := p.payments.GetByGatewayTxnForUpdate(ctx, tx, payload.TransactionID)
	if err != nil {
		return "", nil, err
	}

	if !payload.Amount.IsZero() && !payload.Amount.Equal(pay.Amount) {
		log.Warn("webhook amount differs from payment",
			zap.String("payload_amount", payload.Amount.StringFixed(2)),
			zap.String("payment_amount", pay.Amount.StringFixed(2)),
		)
	}

	target := MapGatewayStatus(payload.Status)
	if !order.CanTransitionPayment(pay.Status, target) {
		log.Info("payment transition ignored",
			zap.String("from", string(pay.Status)),
			zap.String("to", string(target)),
		)
		return OutcomeIgnoredTransition, nil, p.payments.MarkWebhookEventTx(ctx, tx, eventID, OutcomeIgnoredTransition)
	}

	if err := p.payments.UpdateStatusTx(ctx, tx, pay.ID, target, payload.Status); err != nil {
		return "", nil, err
	}

	o, err := p.orders.GetForUpdateTx(ctx, tx, pay.OrderID)
	if err != nil {
		return "", nil, err
	}

	var changed *order.StatusView
	nextOrder, nextPayment := orderEffect(o, target)
	if nextOrder != o.OrderStatus || nextPayment != o.PaymentStatus {
		updatedAt, err := p.orders.UpdateStatusTx(ctx, tx, o.ID, nextOrder, nextPayment)
		if err != nil {
			return "", nil, err
		}
		view := o.StatusView()
		view.OrderStatus, view.PaymentStatus, view.UpdatedAt = nextOrder, nextPayment, updatedAt
		changed = &view
	}

	if err := p.outbox.Insert(ctx, tx, outbox.TopicPaymentStatusChanged, o.OrderNumber, paymentStatusChanged{
		PaymentID:            pay.ID,
		OrderID:              o.ID,
		GatewayTransactionID: pay.GatewayTransactionID,
		From:                 pay.Status,
		To:                   target,
		OrderStatus:          nextOrder,
	}); err != nil {
		return "", nil, err
	}

	if err := p.payments.MarkWebhookEventTx(ctx, tx, eventID, OutcomeProcessed); err != nil {
		return "", nil, err
	}
	return OutcomeProcessed, changed, nil
}

// orderEffect returns the order statuses after a payment reaches target.
// SUCCESS confirms the order when the order state machine allows it.
// FAILED only marks the payment so the customer can retry. A settled order
// is never downgraded.
func orderEffect(o *order.Order, target order.PaymentStatus) (order.OrderStatus, order.PaymentStatus) {
	settled := o.PaymentStatus == order.PaymentSuccess || o.PaymentStatus == order.PaymentRefunded

	switch target {
	case order.PaymentSuccess:
		next := o.OrderStatus
		if order.CanTransition(o.OrderStatus, order.StatusConfirmed) {
			next = order.StatusConfirmed
		}
		return next, order.PaymentSuccess
	case order.PaymentFailed:
		if settled {
			return o.OrderStatus, o.PaymentStatus
		}
		return o.OrderStatus, order.PaymentFailed
	default:
		return o.OrderStatus, o.PaymentStatus
	}
}

type paymentStatusChanged struct {
	PaymentID            int64               `json:"payment_id"`
	OrderID              int64               `json:"order_id"`
	GatewayTransactionID string              `json:"gateway_transaction_id"`
	From                 order.PaymentStatus `json:"from"`
	To                   order.PaymentStatus `json:"to"`
	OrderStatus          order.OrderStatus   `json:"order_status"`
}
