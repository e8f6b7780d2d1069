package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// AssignOrderNumberTx gives a provisionally numbered order its daily
	// number. The advisory day lock it takes is held until q's transaction
	// ends, so it must be the last thing a checkout does before COMMIT.
	AssignOrderNumberTx(ctx context.Context, q db.DBTX, orderID int64, now time.Time, loc *time.Location) (string, error)
	InsertOrderTx(ctx context.Context, q db.DBTX, o *Order) error
	InsertItemTx(ctx context.Context, q db.DBTX, it *OrderItem) error
	GetForUpdateTx(ctx context.Context, q db.DBTX, orderID int64) (*Order, error)
	UpdateStatusTx(ctx context.Context, q db.DBTX, orderID int64, os OrderStatus, ps PaymentStatus) (time.Time, error)

	GetByID(ctx context.Context, orderID int64) (*Order, error)
	GetStatus(ctx context.Context, orderID int64) (*StatusView, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, order_number, user_id, order_status, payment_status,
	subtotal, total_gst, total_amount, shipping_address, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.OrderStatus,
		&o.PaymentStatus,
		&o.Subtotal,
		&o.TotalGST,
		&o.TotalAmount,
		&o.ShippingAddress,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) AssignOrderNumberTx(ctx context.Context, q db.DBTX, orderID int64, now time.Time, loc *time.Location) (string, error) {
	start, key := orderDay(now, loc)

	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, advisoryLockNamespace, key); err != nil {
		return "", fmt.Errorf("lock order sequence: %w", err)
	}

	// Only numbers assigned under this lock match the prefix, so the count
	// is the day's sequence so far.
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE order_number LIKE $1`,
		dayPrefix(start)+"%",
	).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("count orders for day: %w", err)
	}

	number := FormatOrderNumber(start, count+1)
	res, err := q.ExecContext(ctx, `UPDATE orders SET order_number = $2 WHERE id = $1`, orderID, number)
	if err != nil {
		return "", fmt.Errorf("assign order number: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", apperr.NotFound("order", orderID)
	}
	return number, nil
}

func (r *repository) InsertOrderTx(ctx context.Context, q db.DBTX, o *Order) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, user_id, order_status, payment_status,
			subtotal, total_gst, total_amount, shipping_address,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`,
		o.OrderNumber,
		o.UserID,
		o.OrderStatus,
		o.PaymentStatus,
		o.Subtotal,
		o.TotalGST,
		o.TotalAmount,
		o.ShippingAddress,
		o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.UpdatedAt = o.CreatedAt
	return nil
}

func (r *repository) InsertItemTx(ctx context.Context, q db.DBTX, it *OrderItem) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO order_items (
			order_id, product_id, product_name, sku, base_price,
			gst_percentage, quantity, subtotal, gst_amount, item_total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		it.OrderID,
		it.ProductID,
		it.ProductName,
		it.SKU,
		it.BasePrice,
		it.GSTPercentage,
		it.Quantity,
		it.Subtotal,
		it.GSTAmount,
		it.ItemTotal,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (r *repository) GetForUpdateTx(ctx context.Context, q db.DBTX, orderID int64) (*Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

func (r *repository) UpdateStatusTx(ctx context.Context, q db.DBTX, orderID int64, os OrderStatus, ps PaymentStatus) (time.Time, error) {
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		UPDATE orders
		SET order_status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		orderID, os, ps,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("update order status: %w", err)
	}
	return updatedAt, nil
}

func (r *repository) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetByID"),
		zap.Int64("order_id", orderID),
	)

	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		log.Error("failed to get order", zap.Error(err))
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, sku, base_price,
			gst_percentage, quantity, subtotal, gst_amount, item_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id`, orderID)
	if err != nil {
		log.Error("failed to get order items", zap.Error(err))
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.ProductName,
			&it.SKU,
			&it.BasePrice,
			&it.GSTPercentage,
			&it.Quantity,
			&it.Subtotal,
			&it.GSTAmount,
			&it.ItemTotal,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}

func (r *repository) GetStatus(ctx context.Context, orderID int64) (*StatusView, error) {
	var v StatusView
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, order_status, payment_status, updated_at
		FROM orders
		WHERE id = $1`, orderID,
	).Scan(&v.OrderID, &v.OrderNumber, &v.UserID, &v.OrderStatus, &v.PaymentStatus, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order status: %w", err)
	}
	return &v, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}
