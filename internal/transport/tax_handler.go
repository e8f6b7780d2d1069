package transport

import (
	"net/http"

	"gst-checkout/internal/tax"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// TaxHandler exposes the tax engine for storefront previews. It has no
// state of its own.
type TaxHandler struct{}

func NewTaxHandler() *TaxHandler {
	return &TaxHandler{}
}

func (h *TaxHandler) Register(r chi.Router) {
	r.Route("/tax", func(r chi.Router) {
		r.Post("/quote", h.quote)
		r.Post("/reverse", h.reverse)
		r.Post("/verify", h.verify)
	})
}

type quoteRequest struct {
	BasePrice          decimal.Decimal  `json:"base_price"`
	GSTPercentage      int              `json:"gst_percentage"`
	Quantity           int              `json:"quantity"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}

type reverseRequest struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GSTPercentage int             `json:"gst_percentage"`
}

type verifyRequest struct {
	BasePrice     decimal.Decimal `json:"base_price"`
	GSTPercentage int             `json:"gst_percentage"`
	Quantity      int             `json:"quantity"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

func (h *TaxHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		res tax.ItemTax
		err error
	)
	if req.DiscountPercentage != nil {
		res, err = tax.CalculateWithDiscount(req.BasePrice, req.GSTPercentage, req.Quantity, *req.DiscountPercentage)
	} else {
		res, err = tax.CalculateItemTax(req.BasePrice, req.GSTPercentage, req.Quantity)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TaxHandler) reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := tax.ReverseCalculate(req.TotalAmount, req.GSTPercentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// verify answers whether the claimed figures match a fresh calculation.
// Inputs the engine rejects are reported as not valid, never as an error.
func (h *TaxHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	valid := tax.ValidateTaxCalculation(req.BasePrice, req.GSTPercentage, req.Quantity, req.GSTAmount, req.TotalAmount)
	writeJSON(w, http.StatusOK, verifyResponse{Valid: valid})
}
