package transport

import (
	"net/http"

	"gst-checkout/internal/middleware"
	"gst-checkout/internal/order"
	"gst-checkout/internal/payment"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	orders   order.Service
	payments payment.Service
}

func NewOrderHandler(orders order.Service, payments payment.Service) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments}
}

func (h *OrderHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Post("/{id}/payments", h.initiatePayment)
		r.With(middleware.RequireAdmin).Patch("/{id}/status", h.updateStatus)
	})
}

// The address is normalised before it is validated, by the order service.
type createOrderRequest struct {
	ShippingAddress     order.ShippingAddress `json:"shipping_address" validate:"-"`
	ExpectedTotalAmount *decimal.Decimal      `json:"expected_total_amount,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderList struct {
	Orders []order.Order `json:"orders"`
}

func (h *OrderHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrderFromCart(r.Context(), requester(r).UserID, req.ShippingAddress, order.CheckoutOptions{
		ExpectedTotal: req.ExpectedTotalAmount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request) {
	opts := order.ListOptions{Limit: queryInt(r, "limit"), Page: queryInt(r, "page")}

	orders, err := h.orders.ListOrders(r.Context(), requester(r).UserID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orderList{Orders: orders})
}

func (h *OrderHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) status(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.orders.GetOrderStatus(r.Context(), id, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := order.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), id, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.payments.Initiate(r.Context(), id, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
