package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/auth"
	"gst-checkout/internal/cart"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/order"
	"gst-checkout/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status and body. Server-side failures are
// logged here, once, and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("layer", "transport"),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, apperr.Body(err))
}

// decodeJSON reads a request body into dst and checks its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("body", "request body is required")
		}
		return apperr.Validation("body", "malformed JSON")
	}
	return validation.Struct(dst, "", nil)
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return v, nil
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// cartOwner prefers the signed-in user and falls back to the guest session
// header.
func cartOwner(r *http.Request) (cart.Owner, error) {
	userID, _ := auth.UserIDFrom(r.Context())
	return cart.NewOwner(userID, r.Header.Get(auth.GuestSessionHeader))
}

func requester(r *http.Request) order.Requester {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return order.Requester{}
	}
	return order.Requester{UserID: id.UserID, IsAdmin: id.IsAdmin()}
}
