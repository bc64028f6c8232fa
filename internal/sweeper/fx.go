package sweeper

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/perq/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("sweeper",
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(Run),
)

// ProvideLocker builds the redis lease when REDIS_ADDR is set. The sweeper
// runs without it on single-replica deployments.
func ProvideLocker(cfg config.Config, log *zap.Logger) *Locker {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info("sweep lock enabled", zap.String("addr", cfg.Redis.Addr))
	return NewLocker(client)
}

func Run(lc fx.Lifecycle, sweeper *Sweeper) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})

			go func() {
				defer close(done)
				sweeper.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
