// Command cancel-worker drains the delayed order-cancellation queue,
// closing unpaid orders and returning their stock and coupon uses.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/lumishop/lumishop/internal/app"
	"github.com/lumishop/lumishop/internal/cart"
	"github.com/lumishop/lumishop/internal/domain/order"
	"github.com/lumishop/lumishop/internal/repository"
	"github.com/lumishop/lumishop/internal/scheduler"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}

		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		redisClient, err := cart.NewClient(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "create redis client")
		}
		defer func() { _ = redisClient.Close() }()

		orderStore := repository.NewOrderStore(pool)
		couponRepo := repository.NewCouponRepository(pool)
		queue := scheduler.NewQueue(redisClient)
		orderSvc := order.NewService(
			orderStore, couponRepo, nil,
			cart.NewService(redisClient), queue, cfg.Order.CancelTTL,
		)

		worker := scheduler.NewWorker(queue, orderSvc.CancelUnpaid, cfg.Order.CancelInterval)

		lg.Info("Cancel worker running",
			zap.Duration("interval", cfg.Order.CancelInterval))
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "worker")
		}
		return nil
	})
}
