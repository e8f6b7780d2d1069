package payment

import (
	"encoding/json"
	"time"

	"gst-checkout/internal/order"

	"github.com/shopspring/decimal"
)

// Payment is one attempt to pay an order. The most recent attempt, by
// created_at then id, is authoritative.
type Payment struct {
	ID                   int64               `json:"id"`
	OrderID              int64               `json:"order_id"`
	GatewayTransactionID string              `json:"gateway_transaction_id"`
	Amount               decimal.Decimal     `json:"amount"`
	Status               order.PaymentStatus `json:"status"`
	GatewayStatus        string              `json:"gateway_status,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// WebhookEvent is one row of the idempotency ledger.
type WebhookEvent struct {
	ID            int64
	WebhookID     string
	EventType     string
	TransactionID string
	Payload       json.RawMessage
	Outcome       string
	ReceivedAt    time.Time
}
