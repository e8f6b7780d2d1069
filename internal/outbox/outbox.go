// Package outbox stores domain events in the same transaction as the state
// change that produced them. A relay ships them to the broker later.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	TopicOrderCreated         = "order.created"
	TopicOrderStatusChanged   = "order.status_changed"
	TopicPaymentStatusChanged = "payment.status_changed"

	producerName = "checkout"
)

// Envelope is the wire shape of every event the relay publishes.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type Record struct {
	ID        int64           `json:"id"`
	EventID   uuid.UUID       `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

type Repository interface {
	// Insert must be given the transaction that owns the state change.
	Insert(ctx context.Context, q db.DBTX, topic, key string, payload any) error
	FetchPending(ctx context.Context, q db.DBTX, limit int) ([]Record, error)
	MarkSent(ctx context.Context, q db.DBTX, ids []int64) error
}

type repository struct {
	now func() time.Time
}

func NewRepository() Repository {
	return &repository{now: time.Now}
}

func (r *repository) Insert(ctx context.Context, q db.DBTX, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	env := Envelope{
		EventID:       uuid.New(),
		EventType:     topic,
		EventVersion:  1,
		OccurredAt:    r.now().UTC(),
		Producer:      producerName,
		CorrelationID: key,
		Payload:       body,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", topic, err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		env.EventID, topic, key, data)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert outbox event",
			zap.String("layer", "outbox"),
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchPending skips rows another relay instance has already locked.
func (r *repository) FetchPending(ctx context.Context, q db.DBTX, limit int) ([]Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) MarkSent(ctx context.Context, q db.DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}
