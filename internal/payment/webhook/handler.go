package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gst-checkout/internal/logger"
	"gst-checkout/internal/payment"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// EventProcessor is satisfied by *Processor.
type EventProcessor interface {
	Process(ctx context.Context, raw []byte, signature string) (Ack, error)
}

type Handler struct {
	processor EventProcessor
}

func NewHandler(p EventProcessor) *Handler {
	return &Handler{processor: p}
}

type ackResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// ServeHTTP answers 200 for every business outcome so the gateway stops
// retrying. Only transient failures get a 500.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "handler"),
		zap.String("method", "PaymentWebhook"),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		writeAck(w, http.StatusOK, false)
		return
	}

	ack, err := h.processor.Process(r.Context(), body, r.Header.Get(payment.SignatureHeader))
	switch {
	case err == nil:
		writeAck(w, http.StatusOK, ack.Acknowledged)
	case errors.Is(err, payment.ErrPaymentNotFound):
		// logged at error level by the processor
		writeAck(w, http.StatusOK, false)
	default:
		writeAck(w, http.StatusInternalServerError, false)
	}
}

func writeAck(w http.ResponseWriter, status int, acknowledged bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ackResponse{Acknowledged: acknowledged})
}
