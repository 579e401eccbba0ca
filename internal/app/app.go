package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rentacar/internal/domain/rental"
	"github.com/xenking/rentacar/internal/handler"
	"github.com/xenking/rentacar/internal/storage/postgres"
	"github.com/xenking/rentacar/pkg/health"
	"github.com/xenking/rentacar/pkg/httpmiddleware"
)

const serviceName = "rental-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	engine := rental.NewEngine(postgres.NewStore(pool))
	h, err := handler.NewHandler(
		handler.HandlerConfig{TxTimeout: cfg.Booking.TxTimeout},
		engine,
		m.MeterProvider().Meter("github.com/xenking/rentacar/internal/handler"),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}
	sec := handler.NewSecurityHandler(
		postgres.NewAPIKeyRepository(pool),
		postgres.NewUserRepository(pool),
		[]byte(cfg.APIKeyPepper),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(newRouter(healthSvc, h, sec, rateLimit(ctx, cfg.RateLimit)),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
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

func rateLimit(ctx context.Context, cfg RateLimitConfig) httpmiddleware.Middleware {
	keyFunc := httpmiddleware.ClientKey
	if cfg.TrustProxy {
		keyFunc = httpmiddleware.ForwardedClientKey
	}
	return httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
		Max:     cfg.Max,
		Window:  cfg.Window,
		KeyFunc: keyFunc,
	})
}

// newRouter serves the probes and the rental API on one chi router. The
// limiter guards the API ahead of the key lookup; rejections are still
// logged by LogRequests.
func newRouter(healthSvc *health.Health, h *handler.Handler, sec *handler.SecurityHandler, limit httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests, httpmiddleware.Labeler)

	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Group(func(r chi.Router) {
		r.Use(limit)
		h.Mount(r, sec)
	})
	return r
}
