// Package app wires configuration, storage, external clients, domain
// services, and the HTTP server into a runnable application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/retailhub/order-service/internal/domain/cart"
	"github.com/retailhub/order-service/internal/domain/order"
	"github.com/retailhub/order-service/internal/handler"
	"github.com/retailhub/order-service/internal/inventory"
	"github.com/retailhub/order-service/internal/notify"
	"github.com/retailhub/order-service/internal/repository"
	"github.com/retailhub/order-service/pkg/health"
	"github.com/retailhub/order-service/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Storage.
	orderStore := repository.NewOrderStore(pool)
	cartStore := repository.NewCartStore(pool)
	users := repository.NewUserDirectory(pool)

	// External collaborators: product service over HTTP, notifications over
	// Kafka. An empty broker list disables notifications.
	inventoryClient := inventory.NewClient(cfg.ProductServiceURL, &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})

	var notifier order.Notifier = notify.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		emitter := notify.NewEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.FromEmail, users)
		defer func() {
			if err := emitter.Close(); err != nil {
				lg.Error("Close notification emitter", zap.Error(err))
			}
		}()
		notifier = emitter
	}

	// Domain services.
	orderService := order.NewService(orderStore, cartStore, inventoryClient, users, notifier, order.Config{
		FulfillmentAgentID: cfg.FulfillmentAgentID,
	})
	nameFilterMode := order.NameFilterPostPage
	if cfg.Query.NameFilterPrePage {
		nameFilterMode = order.NameFilterPrePage
	}
	queryEngine := order.NewQueryEngine(orderStore, inventoryClient, users, nameFilterMode)
	cartService := cart.NewService(cartStore, users, inventoryClient)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(orderService, queryEngine, cartService).Register(mux)

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	}
	if cfg.RateLimit.Max > 0 {
		middlewares = append(middlewares, httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}))
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "order-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			middlewares...,
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
