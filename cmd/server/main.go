package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"gst-checkout/internal/cart"
	"gst-checkout/internal/config"
	"gst-checkout/internal/db"
	"gst-checkout/internal/inventory"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"
	"gst-checkout/internal/middleware"
	"gst-checkout/internal/order"
	"gst-checkout/internal/outbox"
	"gst-checkout/internal/payment"
	"gst-checkout/internal/payment/webhook"
	"gst-checkout/internal/product"
	"gst-checkout/internal/transport"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Overridable in tests.
var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

type app struct {
	handler http.Handler
	limiter *middleware.Limiter
	closers []func() error
}

// newServer wires every component against one database handle.
func newServer(cfg *config.Config, database *sql.DB) (*app, error) {
	loc, err := time.LoadLocation(cfg.OrderTimezone)
	if err != nil {
		return nil, fmt.Errorf("load ORDER_TIMEZONE %q: %w", cfg.OrderTimezone, err)
	}

	m := metrics.New()
	a := &app{limiter: middleware.NewLimiter(cfg.InternalSecretKey)}

	var cache order.StatusCache = order.NoopStatusCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = order.NewRedisStatusCache(rdb, order.TTLStatusCache)
		a.closers = append(a.closers, rdb.Close)
	}

	catalog := product.NewService(product.NewRepository(database))
	ledger := inventory.NewLedger(database, m)
	outboxRepo := outbox.NewRepository()

	cartRepo := cart.NewRepository(database)
	cartSvc := cart.NewService(cartRepo, catalog, ledger)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(order.Deps{
		DB:       database,
		Repo:     orderRepo,
		Carts:    cartRepo,
		Summary:  cartSvc,
		Catalog:  catalog,
		Ledger:   ledger,
		Outbox:   outboxRepo,
		Cache:    cache,
		Metrics:  m,
		Location: loc,
	})

	paymentRepo := payment.NewRepository()
	paymentSvc := payment.NewService(database, paymentRepo, orderRepo)
	processor := webhook.NewProcessor(database, cfg.WebhookSecret, paymentRepo, orderRepo, outboxRepo, cache, m)

	a.handler = transport.NewRouter(transport.Deps{
		Carts:     cartSvc,
		Orders:    orderSvc,
		Payments:  paymentSvc,
		Webhook:   webhook.NewHandler(processor),
		Metrics:   m,
		Limiter:   a.limiter,
		JWTSecret: []byte(cfg.JWTSecret),
		Ready:     database.PingContext,
	})
	return a, nil
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	a, err := newServer(cfg, database)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range a.closers {
			_ = c()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("checkout server listening", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
