package product

import "github.com/shopspring/decimal"

// Product is the catalog's view of a sellable item. The checkout engine only
// reads it; prices and GST are snapshotted into carts and orders.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	BasePrice     decimal.Decimal `json:"base_price"`
	GSTPercentage int             `json:"gst_percentage"`
	IsActive      bool            `json:"is_active"`
}
