package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/db"
	"gst-checkout/internal/order"
)

type Repository interface {
	CreateTx(ctx context.Context, q db.DBTX, p *Payment) error
	LatestByOrderTx(ctx context.Context, q db.DBTX, orderID int64) (*Payment, error)
	GetByGatewayTxnForUpdate(ctx context.Context, q db.DBTX, txnID string) (*Payment, error)
	UpdateStatusTx(ctx context.Context, q db.DBTX, paymentID int64, status order.PaymentStatus, gatewayStatus string) error

	// SaveWebhookEventTx records the event unless its webhook id was seen
	// before, in which case duplicate is true and nothing is written.
	SaveWebhookEventTx(ctx context.Context, q db.DBTX, ev WebhookEvent) (id int64, duplicate bool, err error)
	MarkWebhookEventTx(ctx context.Context, q db.DBTX, id int64, outcome string) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const paymentColumns = `id, order_id, gateway_transaction_id, amount, status,
	COALESCE(gateway_status, ''), created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*Payment, error) {
	var p Payment
	if err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.GatewayTransactionID,
		&p.Amount,
		&p.Status,
		&p.GatewayStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) CreateTx(ctx context.Context, q db.DBTX, p *Payment) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, gateway_transaction_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		p.OrderID, p.GatewayTransactionID, p.Amount, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedCreatePayment, err)
	}
	return nil
}

// LatestByOrderTx returns nil, nil when the order has no payment yet.
func (r *repository) LatestByOrderTx(ctx context.Context, q db.DBTX, orderID int64) (*Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedGetPayment, err)
	}
	return p, nil
}

func (r *repository) GetByGatewayTxnForUpdate(ctx context.Context, q db.DBTX, txnID string) (*Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE gateway_transaction_id = $1
		FOR UPDATE`, txnID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("payment", txnID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedGetPayment, err)
	}
	return p, nil
}

func (r *repository) UpdateStatusTx(ctx context.Context, q db.DBTX, paymentID int64, status order.PaymentStatus, gatewayStatus string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, gateway_status = $3, updated_at = NOW()
		WHERE id = $1`,
		paymentID, status, gatewayStatus,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedUpdatePayment, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("payment", paymentID)
	}
	return nil
}

func (r *repository) SaveWebhookEventTx(ctx context.Context, q db.DBTX, ev WebhookEvent) (int64, bool, error) {
	const query = `
	INSERT INTO webhook_events (
		webhook_id,
		event_type,
		transaction_id,
		payload
	)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (webhook_id)
	DO NOTHING
	RETURNING id`

	var id int64
	err := q.QueryRowContext(ctx, query,
		ev.WebhookID,
		ev.EventType,
		ev.TransactionID,
		[]byte(ev.Payload),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("%w: %w", ErrFailedSaveWebhook, err)
	}
	return id, false, nil
}

func (r *repository) MarkWebhookEventTx(ctx context.Context, q db.DBTX, id int64, outcome string) error {
	_, err := q.ExecContext(ctx, `UPDATE webhook_events SET outcome = $2 WHERE id = $1`, id, outcome)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedSaveWebhook, err)
	}
	return nil
}
