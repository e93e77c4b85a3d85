// Package app wires configuration, storage, domain services, the payment
// gateway, notifications, and the HTTP server into a running service.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"souq/internal/domain/order"
	"souq/internal/handler"
	"souq/internal/moyasar"
	"souq/internal/notify"
	"souq/internal/payment"
	"souq/internal/repository"
	"souq/pkg/health"
	"souq/pkg/httpmiddleware"
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
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabasePingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	offerRepo := repository.NewOfferRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Notifications: optional, best-effort.
	var events order.EventSink
	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Queue)
		if err != nil {
			return errors.Wrap(err, "connect notification broker")
		}
		defer publisher.Close()

		worker := notify.NewWorker(publisher, cfg.Notify.Buffer, cfg.Notify.Workers)
		go func() {
			if err := worker.Run(ctx); err != nil {
				lg.Error("notification worker stopped", zap.Error(err))
			}
		}()
		events = worker
		lg.Info("Order event publishing enabled", zap.String("queue", cfg.Notify.Queue))
	}

	// Domain services.
	pricer := order.NewPricer(productRepo, couponRepo, offerRepo)
	subunits := func(amount decimal.Decimal) int64 {
		return moyasar.ToSubunits(amount, cfg.Currency)
	}
	orderService := order.NewService(pricer, orderRepo, events, cfg.Currency, subunits)

	// Payment gateway + reconciliation.
	gateway := moyasar.NewClient(cfg.Moyasar.BaseURL, cfg.Moyasar.SecretKey)
	reconciler := payment.NewReconciler(orderRepo, orderService, gateway)

	// HTTP handlers.
	metrics, err := handler.NewMetrics(m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create handler metrics")
	}
	h := handler.NewHandler(
		handler.Config{
			PublicBaseURL:     cfg.PublicBaseURL,
			FrontendURL:       cfg.FrontendURL,
			WebhookSecret:     cfg.Moyasar.WebhookSecret,
			SkipWebhookVerify: cfg.Moyasar.SkipWebhookVerify,
			APIKeyPepper:      []byte(cfg.APIKeyPepper),
			Currency:          cfg.Currency,
		},
		productRepo,
		orderService,
		reconciler,
		gateway,
		apikeyRepo,
		metrics,
	)

	mux := h.Routes()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Customer-ID", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("souq-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop.
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
