package outbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gst-checkout/internal/db"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"

	"go.uber.org/zap"
)

// Publisher delivers records to the broker. It must not return until every
// record is acknowledged or an error occurs.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
}

type Relay struct {
	db       *sql.DB
	repo     Repository
	pub      Publisher
	metrics  *metrics.Metrics
	batch    int
	interval time.Duration
}

func NewRelay(conn *sql.DB, repo Repository, pub Publisher, m *metrics.Metrics, batch int, interval time.Duration) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{db: conn, repo: repo, pub: pub, metrics: m, batch: batch, interval: interval}
}

// RunOnce ships one batch. Rows are marked sent only after the publisher
// acknowledged them, so a crash in between yields a redelivery, never a loss.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var sent int
	err := db.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		records, err := r.repo.FetchPending(ctx, tx, r.batch)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		if err := r.pub.Publish(ctx, records); err != nil {
			for _, rec := range records {
				r.metrics.OutboxResult(rec.Topic, err)
			}
			return err
		}

		ids := make([]int64, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ID)
			r.metrics.OutboxResult(rec.Topic, nil)
		}
		if err := r.repo.MarkSent(ctx, tx, ids); err != nil {
			return err
		}
		sent = len(records)
		return nil
	})
	return sent, err
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *Relay) Run(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "outbox"), zap.String("method", "Run"))
	log.Info("outbox relay started", zap.Int("batch", r.batch), zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay batch failed", zap.Error(err))
		} else if n > 0 {
			log.Info("relayed outbox events", zap.Int("count", n))
		}

		if n == r.batch {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}
