package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/lumishop/lumishop/internal/cart"
	"github.com/lumishop/lumishop/internal/domain/coupon"
	"github.com/lumishop/lumishop/internal/domain/order"
	"github.com/lumishop/lumishop/internal/domain/payment"
	"github.com/lumishop/lumishop/internal/gateway/alipay"
	"github.com/lumishop/lumishop/internal/gateway/wechatpay"
	"github.com/lumishop/lumishop/internal/handler"
	"github.com/lumishop/lumishop/internal/repository"
	"github.com/lumishop/lumishop/internal/scheduler"
	"github.com/lumishop/lumishop/pkg/health"
	"github.com/lumishop/lumishop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the API server.
func Run(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
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

	// Redis: cart + delayed cancel queue.
	redisClient, err := cart.NewClient(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() { _ = redisClient.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	orderStore := repository.NewOrderStore(pool)
	couponRepo := repository.NewCouponRepository(pool)

	// Coupon pre-filter. Checkout works without it, so a warm-up failure
	// only costs the fail-fast path. Reloaded periodically so codes
	// created after startup pass the pre-check.
	filter, err := coupon.WarmFilter(ctx, couponRepo)
	if err != nil {
		lg.Warn("Coupon filter warm-up failed", zap.Error(err))
		filter = nil
	}
	if filter != nil {
		go func() {
			ticker := time.NewTicker(cfg.Coupon.FilterRefresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				if err := filter.Reload(ctx, couponRepo); err != nil {
					lg.Warn("Coupon filter reload failed", zap.Error(err))
				}
			}
		}()
	}

	// Domain services.
	cartSvc := cart.NewService(redisClient)
	cancelQueue := scheduler.NewQueue(redisClient)
	orderSvc := order.NewService(orderStore, couponRepo, filter, cartSvc, cancelQueue, cfg.Order.CancelTTL)

	alipayClient := alipay.NewClient(cfg.Alipay.BaseURL, cfg.Alipay.AppID, nil)
	wechatClient := wechatpay.NewClient(cfg.Wechat.BaseURL, cfg.Wechat.MchID, cfg.Wechat.NotifyURL, nil)
	refundSvc := payment.NewService(orderStore, alipayClient, wechatClient)

	// HTTP handlers: health endpoints + API routes on one server.
	h := handler.New(orderSvc, orderStore, refundSvc)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

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
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
