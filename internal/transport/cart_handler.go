package transport

import (
	"net/http"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/auth"
	"gst-checkout/internal/cart"
	"gst-checkout/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	svc cart.Service
}

func NewCartHandler(svc cart.Service) *CartHandler {
	return &CartHandler{svc: svc}
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.clear)
		r.Post("/items", h.addItem)
		r.Patch("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
		r.With(middleware.RequireUser).Post("/merge", h.merge)
	})
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

// Zero or less removes the item.
type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.svc.GetSummary(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.svc.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	productID, err := int64Param(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.svc.UpdateItemQuantity(r.Context(), owner, productID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	productID, err := int64Param(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.RemoveItem(r.Context(), owner, productID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.Clear(r.Context(), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// merge folds the X-Guest-Session cart into the signed-in user's cart.
func (h *CartHandler) merge(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	session, ok := auth.GuestSession(r)
	if !ok {
		writeError(w, r, apperr.Validation("guest_session", "X-Guest-Session must be a UUID"))
		return
	}

	summary, err := h.svc.MergeGuestCart(r.Context(), userID, session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
