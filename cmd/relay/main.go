// Command relay ships outbox rows to Kafka until interrupted.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gst-checkout/internal/config"
	"gst-checkout/internal/db"
	"gst-checkout/internal/kafka"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"
	"gst-checkout/internal/outbox"

	"go.uber.org/zap"
)

var errNoBrokers = errors.New("KAFKA_BROKERS is required")

// Overridable in tests.
var initDBFunc = db.InitDB

func main() {
	batch := flag.Int("batch", 100, "max events per poll")
	interval := flag.Duration("interval", time.Second, "poll interval when idle")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *batch, *interval); err != nil {
		logger.L().Fatal("relay exited", zap.Error(err))
	}
}

func run(ctx context.Context, batch int, interval time.Duration) error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		return errNoBrokers
	}

	database := initDBFunc(cfg)
	defer database.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.L().Warn("kafka writer close failed", zap.Error(err))
		}
	}()

	return newRelay(database, producer, batch, interval).Run(ctx)
}

func newRelay(database *sql.DB, pub outbox.Publisher, batch int, interval time.Duration) *outbox.Relay {
	return outbox.NewRelay(database, outbox.NewRepository(), pub, metrics.New(), batch, interval)
}
