package order

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/tax"
	"gst-checkout/internal/validation"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user_id"`
	OrderStatus     OrderStatus     `json:"order_status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TotalGST        decimal.Decimal `json:"total_gst"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is a permanent snapshot. It is never re-priced from the catalog.
type OrderItem struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	SKU           string          `json:"sku"`
	BasePrice     decimal.Decimal `json:"base_price"`
	GSTPercentage int             `json:"gst_percentage"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	ItemTotal     decimal.Decimal `json:"item_total"`
}

// StatusView is the small projection served by the status endpoint and
// kept in the cache.
type StatusView struct {
	OrderID       int64         `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	UserID        int64         `json:"user_id"`
	OrderStatus   OrderStatus   `json:"order_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (o *Order) StatusView() StatusView {
	return StatusView{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		UpdatedAt:     o.UpdatedAt,
	}
}

// NewOrderItem prices one line through the tax engine.
func NewOrderItem(productID int64, name, sku string, basePrice decimal.Decimal, gstPercentage, quantity int) (OrderItem, error) {
	if productID <= 0 {
		return OrderItem{}, apperr.Validation("product_id", "must be a positive integer")
	}

	line, err := tax.CalculateItemTax(basePrice, gstPercentage, quantity)
	if err != nil {
		return OrderItem{}, err
	}

	return OrderItem{
		ProductID:     productID,
		ProductName:   name,
		SKU:           sku,
		BasePrice:     basePrice,
		GSTPercentage: gstPercentage,
		Quantity:      quantity,
		Subtotal:      line.Subtotal,
		GSTAmount:     line.GSTAmount,
		ItemTotal:     line.TotalAmount,
	}, nil
}

// NewOrder builds a PENDING order whose totals are the sums of its items.
func NewOrder(orderNumber string, userID int64, addr ShippingAddress, items []OrderItem) (*Order, error) {
	if orderNumber == "" {
		return nil, apperr.Validation("order_number", "is required")
	}
	if userID <= 0 {
		return nil, apperr.Validation("user_id", "must be a positive integer")
	}
	if len(items) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	o := &Order{
		OrderNumber:     orderNumber,
		UserID:          userID,
		OrderStatus:     StatusPending,
		PaymentStatus:   PaymentInitiated,
		Subtotal:        decimal.Zero,
		TotalGST:        decimal.Zero,
		TotalAmount:     decimal.Zero,
		ShippingAddress: addr,
		Items:           items,
	}
	for _, it := range items {
		o.Subtotal = o.Subtotal.Add(it.Subtotal)
		o.TotalGST = o.TotalGST.Add(it.GSTAmount)
		o.TotalAmount = o.TotalAmount.Add(it.ItemTotal)
	}

	if !tax.WithinTolerance(o.Subtotal.Add(o.TotalGST), o.TotalAmount) {
		return nil, fmt.Errorf("%w: %s + %s != %s", ErrTotalsInconsistent, o.Subtotal, o.TotalGST, o.TotalAmount)
	}
	return o, nil
}

type ShippingAddress struct {
	Name       string `json:"name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=12"`
	Country    string `json:"country" validate:"len=2"`
}

// NewShippingAddress trims every field and defaults the country to IN.
// Indian addresses need a six digit PIN code.
func NewShippingAddress(a ShippingAddress) (ShippingAddress, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.ReplaceAll(strings.TrimSpace(a.Phone), " ", "")
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = "IN"
	}

	if err := validation.Struct(a, "shipping_address.", ErrInvalidAddress); err != nil {
		return ShippingAddress{}, err
	}
	if a.Country == "IN" {
		if err := validation.Var(a.PostalCode, "pincode", "shipping_address.postal_code", ErrInvalidAddress); err != nil {
			return ShippingAddress{}, err
		}
	}
	return a, nil
}

// Value stores the address as JSONB.
func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ShippingAddress) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ShippingAddress{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("shipping address: unsupported type %T", src)
	}
}

// CheckoutOptions carries optional client assertions about the cart.
type CheckoutOptions struct {
	// ExpectedTotal, when set, must match the server total within one paisa.
	ExpectedTotal *decimal.Decimal
}

// Requester is who is asking, as established by the auth middleware.
type Requester struct {
	UserID  int64
	IsAdmin bool
}

func (r Requester) CanView(ownerID int64) bool {
	return r.IsAdmin || (r.UserID > 0 && r.UserID == ownerID)
}

type ListOptions struct {
	Limit int
	Page  int
}

func (l ListOptions) normalize() (limit, offset int) {
	limit, page := l.Limit, l.Page
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
