package cart

import (
	"gst-checkout/internal/inventory"
	"gst-checkout/internal/tax"

	"github.com/google/uuid"
)

func ToLineItems(items []CartItem) []tax.LineItem {
	out := make([]tax.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, tax.LineItem{
			BasePrice:     it.BasePrice,
			GSTPercentage: it.GSTPercentage,
			Quantity:      it.Quantity,
		})
	}
	return out
}

func ToStockLines(items []CartItem) []inventory.Line {
	out := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		out = append(out, inventory.Line{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return out
}

// BuildSummary prices items with the tax engine. cartID may be nil for an
// owner that has never added anything.
func BuildSummary(cartID *uuid.UUID, items []CartItem) (*Summary, error) {
	totals, err := tax.CalculateCartTax(ToLineItems(items))
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		CartID:      cartID,
		Items:       make([]SummaryItem, 0, len(items)),
		Subtotal:    totals.Subtotal,
		TotalGST:    totals.TotalGST,
		TotalAmount: totals.TotalAmount,
		GSTBreakup:  totals.GSTBreakup,
	}

	for _, it := range items {
		line, err := tax.CalculateItemTax(it.BasePrice, it.GSTPercentage, it.Quantity)
		if err != nil {
			return nil, err
		}
		summary.Items = append(summary.Items, SummaryItem{
			CartItem:  it,
			Subtotal:  line.Subtotal,
			GSTAmount: line.GSTAmount,
			ItemTotal: line.TotalAmount,
		})
	}
	return summary, nil
}
