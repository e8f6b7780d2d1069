package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/cart"
	"gst-checkout/internal/db"
	"gst-checkout/internal/inventory"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"
	"gst-checkout/internal/outbox"
	"gst-checkout/internal/product"
	"gst-checkout/internal/tax"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockLedger is the slice of the inventory ledger checkout drives.
type StockLedger interface {
	Shortfalls(ctx context.Context, lines []inventory.Line) ([]apperr.StockShortfall, error)
	LockForCheckout(ctx context.Context, q db.DBTX, lines []inventory.Line) ([]apperr.StockShortfall, error)
	ReserveStockTx(ctx context.Context, q db.DBTX, productID int64, qty int) (bool, error)
	CommitStockTx(ctx context.Context, q db.DBTX, productID int64, qty int) error
}

type Service interface {
	CreateOrderFromCart(ctx context.Context, userID int64, addr ShippingAddress, opts CheckoutOptions) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, target OrderStatus) (*Order, error)
	GetOrder(ctx context.Context, orderID int64, requester Requester) (*Order, error)
	ListOrders(ctx context.Context, userID int64, opts ListOptions) ([]Order, error)
	GetOrderStatus(ctx context.Context, orderID int64, requester Requester) (*StatusView, error)
}

type Deps struct {
	DB       *sql.DB
	Repo     Repository
	Carts    cart.Repository
	Summary  CartSummarizer
	Catalog  product.Catalog
	Ledger   StockLedger
	Outbox   outbox.Repository
	Cache    StatusCache
	Metrics  *metrics.Metrics
	Location *time.Location
	Now      func() time.Time
}

// CartSummarizer prices the caller's cart before any lock is taken.
type CartSummarizer interface {
	GetSummary(ctx context.Context, owner cart.Owner) (*cart.Summary, error)
}

type service struct {
	db      *sql.DB
	repo    Repository
	carts   cart.Repository
	summary CartSummarizer
	catalog product.Catalog
	ledger  StockLedger
	outbox  outbox.Repository
	cache   StatusCache
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
}

func NewService(d Deps) Service {
	s := &service{
		db:      d.DB,
		repo:    d.Repo,
		carts:   d.Carts,
		summary: d.Summary,
		catalog: d.Catalog,
		ledger:  d.Ledger,
		outbox:  d.Outbox,
		cache:   d.Cache,
		metrics: d.Metrics,
		loc:     d.Location,
		now:     d.Now,
	}
	if s.cache == nil {
		s.cache = NoopStatusCache{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type orderCreatedEvent struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OrderStatus   OrderStatus     `json:"order_status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	ItemCount     int             `json:"item_count"`
}

type orderStatusChangedEvent struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
}

// CreateOrderFromCart turns the user's cart into an order in one
// transaction. Either the order, its items, the stock movements and the
// cart clear all happen, or none of them do.
func (s *service) CreateOrderFromCart(ctx context.Context, userID int64, addr ShippingAddress, opts CheckoutOptions) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrderFromCart"),
		zap.Int64("user_id", userID),
	)
	timer := metrics.StartTimer()

	o, err := s.createOrderFromCart(ctx, log, userID, addr, opts)
	if err != nil {
		s.metrics.CheckoutOutcome(checkoutOutcome(err))
		return nil, err
	}

	s.metrics.CheckoutOutcome("created")
	s.cache.Set(ctx, o.StatusView())

	log.Info("order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("total_amount", o.TotalAmount.StringFixed(2)),
		zap.Int("items", len(o.Items)),
		zap.Duration("duration", timer.Duration()),
	)
	return o, nil
}

func (s *service) createOrderFromCart(ctx context.Context, log *zap.Logger, userID int64, addr ShippingAddress, opts CheckoutOptions) (*Order, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthenticated
	}

	addr, err := NewShippingAddress(addr)
	if err != nil {
		return nil, err
	}

	owner := cart.UserOwner(userID)

	/* ---------- PRE-CHECK (no locks) ---------- */

	summary, err := s.summary.GetSummary(ctx, owner)
	if err != nil {
		return nil, err
	}

	cartItems := make([]cart.CartItem, 0, len(summary.Items))
	for _, it := range summary.Items {
		cartItems = append(cartItems, it.CartItem)
	}

	if summary.IsEmpty() || summary.CartID == nil {
		return nil, ErrEmptyCart
	}

	shortfalls, err := s.ledger.Shortfalls(ctx, cart.ToStockLines(cartItems))
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		log.Info("checkout rejected by stock pre-check", zap.Int("shortfalls", len(shortfalls)))
		return nil, &apperr.InsufficientStockError{Items: shortfalls}
	}
	if err := checkExpectedTotal(opts, summary.TotalAmount); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(cartItems))
	for _, it := range cartItems {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	/* ---------- TRANSACTION ---------- */

	var created *Order
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		now := s.now()

		locked, err := s.carts.LockItemsTx(ctx, tx, *summary.CartID)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrEmptyCart
		}

		items := make([]OrderItem, 0, len(locked))
		for _, ci := range locked {
			p, ok := products[ci.ProductID]
			if !ok {
				if p, err = s.catalog.GetProduct(ctx, ci.ProductID); err != nil {
					return err
				}
			}
			it, err := NewOrderItem(ci.ProductID, p.Name, p.SKU, ci.BasePrice, ci.GSTPercentage, ci.Quantity)
			if err != nil {
				return err
			}
			items = append(items, it)
		}

		o, err := NewOrder(provisionalOrderNumber(), userID, addr, items)
		if err != nil {
			return err
		}
		if err := checkExpectedTotal(opts, o.TotalAmount); err != nil {
			return err
		}
		o.CreatedAt, o.UpdatedAt = now, now

		if err := s.repo.InsertOrderTx(ctx, tx, o); err != nil {
			return err
		}

		shortfalls, err := s.ledger.LockForCheckout(ctx, tx, cart.ToStockLines(locked))
		if err != nil {
			return err
		}
		if len(shortfalls) > 0 {
			log.Info("checkout rejected under lock", zap.Int("shortfalls", len(shortfalls)))
			return &apperr.InsufficientStockError{Items: shortfalls}
		}

		itemIDs := make([]int64, 0, len(locked))
		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			if err := s.repo.InsertItemTx(ctx, tx, it); err != nil {
				return err
			}

			ok, err := s.ledger.ReserveStockTx(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: product %d", ErrReservationRefused, it.ProductID)
			}
			if err := s.ledger.CommitStockTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			itemIDs = append(itemIDs, locked[i].ID)
		}

		if err := s.carts.DeleteItemsTx(ctx, tx, *summary.CartID, itemIDs); err != nil {
			return err
		}

		// Numbering serialises checkouts of the same day, so it comes after
		// every product lock and only the outbox insert follows it.
		number, err := s.repo.AssignOrderNumberTx(ctx, tx, o.ID, now, s.loc)
		if err != nil {
			return err
		}
		o.OrderNumber = number

		if err := s.outbox.Insert(ctx, tx, outbox.TopicOrderCreated, o.OrderNumber, orderCreatedEvent{
			OrderID:       o.ID,
			OrderNumber:   o.OrderNumber,
			UserID:        o.UserID,
			TotalAmount:   o.TotalAmount,
			OrderStatus:   o.OrderStatus,
			PaymentStatus: o.PaymentStatus,
			ItemCount:     len(o.Items),
		}); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			log.Error("checkout transaction failed", zap.Error(err))
		}
		return nil, err
	}
	return created, nil
}

func checkExpectedTotal(opts CheckoutOptions, actual decimal.Decimal) error {
	if opts.ExpectedTotal == nil {
		return nil
	}
	if !tax.WithinTolerance(*opts.ExpectedTotal, actual) {
		return &apperr.ValidationError{
			Field:  "expected_total_amount",
			Reason: fmt.Sprintf("cart total is %s", actual.StringFixed(2)),
			Cause:  ErrTotalMismatch,
		}
	}
	return nil
}

func isBusinessError(err error) bool {
	var (
		stock      *apperr.InsufficientStockError
		validation *apperr.ValidationError
	)
	return errors.As(err, &stock) || errors.As(err, &validation) || errors.Is(err, ErrEmptyCart)
}

func checkoutOutcome(err error) string {
	var (
		stock      *apperr.InsufficientStockError
		validation *apperr.ValidationError
	)
	switch {
	case errors.As(err, &stock):
		return "insufficient_stock"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &validation):
		return "invalid"
	default:
		return "error"
	}
}

// UpdateOrderStatus applies an operator-driven transition. Payment status is
// left to the webhook processor.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID int64, target OrderStatus) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateOrderStatus"),
		zap.Int64("order_id", orderID),
		zap.String("target", string(target)),
	)

	if !target.Valid() {
		return nil, apperr.Validation("order_status", "unknown order status "+string(target))
	}

	var updated *Order
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		o, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		from := o.OrderStatus
		if err := CheckTransition(from, target); err != nil {
			return err
		}

		updatedAt, err := s.repo.UpdateStatusTx(ctx, tx, orderID, target, o.PaymentStatus)
		if err != nil {
			return err
		}
		o.OrderStatus = target
		o.UpdatedAt = updatedAt

		if err := s.outbox.Insert(ctx, tx, outbox.TopicOrderStatusChanged, o.OrderNumber, orderStatusChangedEvent{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			From:        from,
			To:          target,
		}); err != nil {
			return err
		}

		updated = o
		return nil
	})
	if err != nil {
		var transition *apperr.InvalidTransitionError
		if errors.As(err, &transition) {
			log.Info("order transition rejected", zap.String("from", transition.From))
		} else if !errors.Is(err, ErrOrderNotFound) {
			log.Error("failed to update order status", zap.Error(err))
		}
		return nil, err
	}

	s.cache.Set(ctx, updated.StatusView())
	log.Info("order status updated")
	return updated, nil
}

func (s *service) GetOrder(ctx context.Context, orderID int64, requester Requester) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.CanView(o.UserID) {
		// do not reveal that someone else's order exists
		return nil, apperr.NotFound("order", orderID)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, userID int64, opts ListOptions) ([]Order, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthenticated
	}
	limit, offset := opts.normalize()
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetOrderStatus serves from the cache when it can and fills it on a miss.
// The fill loses to any view a writer stored after this read began.
func (s *service) GetOrderStatus(ctx context.Context, orderID int64, requester Requester) (*StatusView, error) {
	v, ok := s.cache.Get(ctx, orderID)
	if !ok {
		var err error
		if v, err = s.repo.GetStatus(ctx, orderID); err != nil {
			return nil, err
		}
		s.cache.Set(ctx, *v)
	}
	if !requester.CanView(v.UserID) {
		return nil, apperr.NotFound("order", orderID)
	}
	return v, nil
}
