package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	GetCart(ctx context.Context, owner Owner) (*Cart, error)
	GetOrCreateCart(ctx context.Context, owner Owner) (*Cart, error)
	GetItem(ctx context.Context, cartID uuid.UUID, productID int64) (*CartItem, error)
	CreateItem(ctx context.Context, params CreateItemParams) (*CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*CartItem, error)
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error
	ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error)
	MergeInto(ctx context.Context, fromCartID, toCartID uuid.UUID) error

	// Used by checkout inside its own transaction.
	LockItemsTx(ctx context.Context, q db.DBTX, cartID uuid.UUID) ([]CartItem, error)
	DeleteItemsTx(ctx context.Context, q db.DBTX, cartID uuid.UUID, itemIDs []int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const (
	cartColumns = `id, user_id, guest_session_id, created_at, updated_at`
	itemColumns = `ci.id, ci.cart_id, ci.product_id, COALESCE(p.name, ''), ci.quantity,
		ci.base_price, ci.gst_percentage, ci.created_at, ci.updated_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanCart(row scanner) (*Cart, error) {
	var (
		c      Cart
		userID sql.NullInt64
		guest  uuid.NullUUID
	)
	if err := row.Scan(&c.ID, &userID, &guest, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.Int64
	}
	if guest.Valid {
		c.GuestSessionID = &guest.UUID
	}
	return &c, nil
}

func scanItem(row scanner) (*CartItem, error) {
	var it CartItem
	err := row.Scan(
		&it.ID,
		&it.CartID,
		&it.ProductID,
		&it.ProductName,
		&it.Quantity,
		&it.BasePrice,
		&it.GSTPercentage,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func ownerArgs(owner Owner) (string, any) {
	if owner.UserID != nil {
		return "user_id", *owner.UserID
	}
	return "guest_session_id", *owner.GuestSessionID
}

// GetCart returns nil, nil when the owner has no cart yet.
func (r *repository) GetCart(ctx context.Context, owner Owner) (*Cart, error) {
	col, arg := ownerArgs(owner)

	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE `+col+` = $1`, arg)
	c, err := scanCart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedGetCart, err)
	}
	return c, nil
}

func (r *repository) GetOrCreateCart(ctx context.Context, owner Owner) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetOrCreateCart"),
		zap.String("owner", owner.String()),
	)

	col, arg := ownerArgs(owner)
	query := `
	INSERT INTO carts (id, ` + col + `)
	VALUES ($1, $2)
	ON CONFLICT (` + col + `) DO UPDATE SET updated_at = NOW()
	RETURNING ` + cartColumns

	c, err := scanCart(r.db.QueryRowContext(ctx, query, uuid.New(), arg))
	if err != nil {
		log.Error("failed to get or create cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFailedGetCart, err)
	}
	return c, nil
}

// GetItem returns nil, nil when the product is not in the cart.
func (r *repository) GetItem(ctx context.Context, cartID uuid.UUID, productID int64) (*CartItem, error) {
	query := `
	SELECT ` + itemColumns + `
	FROM cart_items ci
	LEFT JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1 AND ci.product_id = $2`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, cartID, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedGetCartItem, err)
	}
	return it, nil
}

func (r *repository) CreateItem(ctx context.Context, params CreateItemParams) (*CartItem, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateItem"),
		zap.String("cart_id", params.CartID.String()),
		zap.Int64("product_id", params.ProductID),
	)

	log.Debug("start create cart item")

	query := `
	INSERT INTO cart_items (cart_id, product_id, quantity, base_price, gst_percentage)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, cart_id, product_id, '', quantity, base_price, gst_percentage, created_at, updated_at`

	it, err := scanItem(r.db.QueryRowContext(ctx, query,
		params.CartID,
		params.ProductID,
		params.Quantity,
		params.BasePrice,
		params.GSTPercentage,
	))
	if err != nil {
		log.Error("failed to create cart item", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFailedCreateCartItem, err)
	}

	log.Info("success create cart item", zap.Int64("cart_item_id", it.ID))
	return it, nil
}

func (r *repository) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*CartItem, error) {
	query := `
	UPDATE cart_items
	SET quantity = $3, updated_at = NOW()
	WHERE cart_id = $1 AND product_id = $2
	RETURNING id, cart_id, product_id, '', quantity, base_price, gst_percentage, created_at, updated_at`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, cartID, productID, quantity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedUpdateCart, err)
	}
	return it, nil
}

func (r *repository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedRemoveCart, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedRemoveCart, err)
	}
	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *repository) ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailedClearCart, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailedClearCart, err)
	}
	return n, nil
}

func (r *repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	return listItems(ctx, r.db, cartID, false)
}

// LockItemsTx locks the cart's item rows so a concurrent update cannot
// change what is being ordered.
func (r *repository) LockItemsTx(ctx context.Context, q db.DBTX, cartID uuid.UUID) ([]CartItem, error) {
	return listItems(ctx, q, cartID, true)
}

func listItems(ctx context.Context, q db.DBTX, cartID uuid.UUID, forUpdate bool) ([]CartItem, error) {
	query := `
	SELECT ` + itemColumns + `
	FROM cart_items ci
	LEFT JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.product_id`
	if forUpdate {
		query += ` FOR UPDATE OF ci`
	}

	rows, err := q.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedGetCartRows, err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedGetCartRows, err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedGetCartRows, err)
	}
	return items, nil
}

// DeleteItemsTx removes exactly the given items, leaving anything added
// while checkout was running.
func (r *repository) DeleteItemsTx(ctx context.Context, q db.DBTX, cartID uuid.UUID, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND id = ANY($2)`, cartID, pq.Array(itemIDs))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedClearCart, err)
	}
	return nil
}

// MergeInto moves every item of fromCartID into toCartID, summing
// quantities where both hold the same product and keeping the target's
// price snapshot. The source cart is deleted.
func (r *repository) MergeInto(ctx context.Context, fromCartID, toCartID uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "MergeInto"),
		zap.String("from_cart_id", fromCartID.String()),
		zap.String("to_cart_id", toCartID.String()),
	)

	err := db.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, base_price, gst_percentage)
		SELECT $2, product_id, quantity, base_price, gst_percentage
		FROM cart_items
		WHERE cart_id = $1
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
			fromCartID, toCartID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, fromCartID)
		return err
	})
	if err != nil {
		log.Error("failed to merge carts", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrFailedMergeCart, err)
	}

	log.Info("carts merged")
	return nil
}
