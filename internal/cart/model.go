package cart

import (
	"strings"
	"time"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/tax"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Owner identifies whose cart it is: a signed-in user or a guest session,
// never both and never neither.
type Owner struct {
	UserID         *int64
	GuestSessionID *uuid.UUID
}

// NewOwner prefers the user when both are present. guestSession must be a
// UUID when used.
func NewOwner(userID int64, guestSession string) (Owner, error) {
	if userID > 0 {
		return UserOwner(userID), nil
	}

	guestSession = strings.TrimSpace(guestSession)
	if guestSession == "" {
		return Owner{}, apperr.Validation("owner", "a signed-in user or a guest session is required")
	}

	id, err := uuid.Parse(guestSession)
	if err != nil {
		return Owner{}, apperr.Validation("guest_session", "must be a UUID")
	}
	return GuestOwner(id), nil
}

func UserOwner(userID int64) Owner {
	return Owner{UserID: &userID}
}

func GuestOwner(session uuid.UUID) Owner {
	return Owner{GuestSessionID: &session}
}

func (o Owner) IsGuest() bool {
	return o.UserID == nil
}

func (o Owner) String() string {
	if o.UserID != nil {
		return "user"
	}
	return "guest"
}

type Cart struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *int64     `json:"user_id,omitempty"`
	GuestSessionID *uuid.UUID `json:"guest_session_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CartItem carries the price and GST captured when the product was first
// added. Later catalog changes do not touch it.
type CartItem struct {
	ID            int64           `json:"id"`
	CartID        uuid.UUID       `json:"cart_id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	Quantity      int             `json:"quantity"`
	BasePrice     decimal.Decimal `json:"base_price"`
	GSTPercentage int             `json:"gst_percentage"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type SummaryItem struct {
	CartItem
	Subtotal  decimal.Decimal `json:"subtotal"`
	GSTAmount decimal.Decimal `json:"gst_amount"`
	ItemTotal decimal.Decimal `json:"item_total"`
}

// Summary is a cart priced by the tax engine.
type Summary struct {
	CartID      *uuid.UUID        `json:"cart_id,omitempty"`
	Items       []SummaryItem     `json:"items"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	TotalGST    decimal.Decimal   `json:"total_gst"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	GSTBreakup  []tax.SlabBreakup `json:"gst_breakup"`
}

func (s *Summary) IsEmpty() bool {
	return len(s.Items) == 0
}

type CreateItemParams struct {
	CartID        uuid.UUID
	ProductID     int64
	Quantity      int
	BasePrice     decimal.Decimal
	GSTPercentage int
}
