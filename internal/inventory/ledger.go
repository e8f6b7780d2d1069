package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Ledger owns every mutation of product_inventory. Each standalone method
// runs in its own transaction; the Tx variants join the caller's.
type Ledger struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

func NewLedger(db *sql.DB, m *metrics.Metrics) *Ledger {
	return &Ledger{db: db, metrics: m}
}

const (
	lockStockQuery = `
		SELECT product_id, stock_quantity, reserved_quantity
		FROM product_inventory
		WHERE product_id = $1
		FOR UPDATE`

	saveStockQuery = `
		UPDATE product_inventory
		SET stock_quantity = $2, reserved_quantity = $3, updated_at = NOW()
		WHERE product_id = $1`
)

// ReserveStock reports false, with nothing changed, when fewer than qty
// units are available. A refusal rolls the transaction back.
func (l *Ledger) ReserveStock(ctx context.Context, productID int64, qty int) (bool, error) {
	if err := validateQuantity(qty); err != nil {
		return false, err
	}

	err := db.WithTx(ctx, l.db, nil, func(tx *sql.Tx) error {
		reserved, err := l.ReserveStockTx(ctx, tx, productID, qty)
		if err != nil {
			return err
		}
		if !reserved {
			return ErrInsufficientStock
		}
		return nil
	})
	if errors.Is(err, ErrInsufficientStock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) CommitStock(ctx context.Context, productID int64, qty int) error {
	if err := validateQuantity(qty); err != nil {
		return err
	}
	return db.WithTx(ctx, l.db, nil, func(tx *sql.Tx) error {
		return l.CommitStockTx(ctx, tx, productID, qty)
	})
}

func (l *Ledger) ReleaseStock(ctx context.Context, productID int64, qty int) error {
	if err := validateQuantity(qty); err != nil {
		return err
	}
	return db.WithTx(ctx, l.db, nil, func(tx *sql.Tx) error {
		return l.ReleaseStockTx(ctx, tx, productID, qty)
	})
}

func (l *Ledger) ReserveStockTx(ctx context.Context, q db.DBTX, productID int64, qty int) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.String("method", "ReserveStock"),
		zap.Int64("product_id", productID),
		zap.Int("quantity", qty),
	)

	stock, err := lockStock(ctx, q, productID)
	if err != nil {
		log.Error("failed to lock stock", zap.Error(err))
		return false, err
	}

	next, err := stock.Reserve(qty)
	if errors.Is(err, ErrInsufficientStock) {
		log.Info("reservation refused", zap.Int("available", stock.Available()))
		l.metrics.ReservationResult(false)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := saveStock(ctx, q, next); err != nil {
		log.Error("failed to save reservation", zap.Error(err))
		return false, err
	}

	l.metrics.ReservationResult(true)
	return true, nil
}

func (l *Ledger) CommitStockTx(ctx context.Context, q db.DBTX, productID int64, qty int) error {
	return l.apply(ctx, q, "CommitStock", productID, qty, Stock.Commit)
}

func (l *Ledger) ReleaseStockTx(ctx context.Context, q db.DBTX, productID int64, qty int) error {
	return l.apply(ctx, q, "ReleaseStock", productID, qty, Stock.Release)
}

func (l *Ledger) apply(ctx context.Context, q db.DBTX, method string, productID int64, qty int, step func(Stock, int) (Stock, error)) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.String("method", method),
		zap.Int64("product_id", productID),
		zap.Int("quantity", qty),
	)

	stock, err := lockStock(ctx, q, productID)
	if err != nil {
		log.Error("failed to lock stock", zap.Error(err))
		return err
	}

	next, err := step(stock, qty)
	if err != nil {
		log.Warn("stock transition rejected", zap.Int("reserved", stock.ReservedQuantity), zap.Error(err))
		return err
	}

	if err := saveStock(ctx, q, next); err != nil {
		log.Error("failed to save stock", zap.Error(err))
		return err
	}
	return nil
}

// GetAvailableStock returns 0 for products with no inventory row.
func (l *Ledger) GetAvailableStock(ctx context.Context, productID int64) (int, error) {
	var available int
	err := l.db.QueryRowContext(ctx, `
		SELECT stock_quantity - reserved_quantity
		FROM product_inventory
		WHERE product_id = $1`, productID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get available stock: %w", err)
	}
	return available, nil
}

// AvailableStocks reads availability for many products without locking.
// Products with no inventory row are reported as 0.
func (l *Ledger) AvailableStocks(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(productIDs))
	for _, id := range productIDs {
		out[id] = 0
	}
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT product_id, stock_quantity - reserved_quantity
		FROM product_inventory
		WHERE product_id = ANY($1)`, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("get available stocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        int64
			available int
		)
		if err := rows.Scan(&id, &available); err != nil {
			return nil, fmt.Errorf("scan available stock: %w", err)
		}
		out[id] = available
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available stocks: %w", err)
	}
	return out, nil
}

// Shortfalls compares lines against availability without taking locks.
func (l *Ledger) Shortfalls(ctx context.Context, lines []Line) ([]apperr.StockShortfall, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	available, err := l.AvailableStocks(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []apperr.StockShortfall
	for _, line := range sortedLines(lines) {
		if have := available[line.ProductID]; have < line.Quantity {
			out = append(out, apperr.StockShortfall{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Quantity,
				Available:   have,
			})
		}
	}
	return out, nil
}

// LockForCheckout locks every line's inventory row in ascending product id
// order and reports every line that cannot be covered. The locks are held
// until q's transaction ends.
func (l *Ledger) LockForCheckout(ctx context.Context, q db.DBTX, lines []Line) ([]apperr.StockShortfall, error) {
	var out []apperr.StockShortfall
	for _, line := range sortedLines(lines) {
		stock, err := lockStock(ctx, q, line.ProductID)
		if err != nil {
			return nil, err
		}
		if stock.Available() < line.Quantity {
			out = append(out, apperr.StockShortfall{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Quantity,
				Available:   stock.Available(),
			})
		}
	}
	return out, nil
}

func sortedLines(lines []Line) []Line {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

// lockStock treats a missing row as zero stock.
func lockStock(ctx context.Context, q db.DBTX, productID int64) (Stock, error) {
	s := Stock{ProductID: productID}
	err := q.QueryRowContext(ctx, lockStockQuery, productID).
		Scan(&s.ProductID, &s.StockQuantity, &s.ReservedQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return Stock{ProductID: productID}, nil
	}
	if err != nil {
		return Stock{}, fmt.Errorf("%w: %w", ErrFailedLockStock, err)
	}
	return s, nil
}

func saveStock(ctx context.Context, q db.DBTX, s Stock) error {
	res, err := q.ExecContext(ctx, saveStockQuery, s.ProductID, s.StockQuantity, s.ReservedQuantity)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedUpdateStock, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: no inventory row for product %d", ErrFailedUpdateStock, s.ProductID)
	}
	return nil
}
