package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/events"
	"github.com/xenking/orderflow/internal/handler"
	"github.com/xenking/orderflow/internal/repository"
	"github.com/xenking/orderflow/pkg/health"
	"github.com/xenking/orderflow/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the stale-hold
// sweeper, and handles graceful shutdown. It is the single wiring point for
// the application.
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

	// Repositories.
	catalogReader := repository.NewSnapshotReader(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	orderStore := repository.NewOrderStore(pool)
	stockManager := repository.NewReservationManager(pool)

	// Domain services.
	discountValidator := discount.NewRepoValidator(discountRepo)
	publisher, err := events.NewMetricsPublisher(
		m.MeterProvider().Meter("orderflow"),
		events.NewLogPublisher(lg),
	)
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}
	orderService := order.NewService(catalogReader, stockManager, discountValidator, orderStore, publisher, lg)

	// HTTP surface: health endpoints + API routes on one server.
	h := handler.NewHandler(orderService)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("order-server", m),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Stale-hold sweeper: orders that crashed between reserving stock and
	// persisting leave held reservations behind. Release them past MaxAge.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sweeper.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				released, err := stockManager.ExpireStaleHolds(gctx, cfg.Sweeper.MaxAge)
				if err != nil {
					lg.Warn("Stale hold sweep failed", zap.Error(err))
					continue
				}
				if released > 0 {
					lg.Info("Released stale stock holds", zap.Int("count", released))
				}
			}
		}
	})

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
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
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
