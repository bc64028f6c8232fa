package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/perq/internal/clock"
	"github.com/smallbiznis/perq/internal/config"
	"github.com/smallbiznis/perq/internal/metrics"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/perq/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	Cfg             config.Config
	NotificationSvc notificationdomain.Service
	PaymentSvc      paymentdomain.Service
	Locker          *Locker          `optional:"true"`
	Metrics         *metrics.Metrics `optional:"true"`
}

// Sweeper drives the background retry jobs: the notification retry sweep and
// the payment credit reconcile.
type Sweeper struct {
	log             *zap.Logger
	clock           clock.Clock
	cfg             config.SweepConfig
	notificationSvc notificationdomain.Service
	paymentSvc      paymentdomain.Service
	locker          *Locker
	metrics         *metrics.Metrics
}

func New(p Params) (*Sweeper, error) {
	if p.Log == nil || p.Clock == nil || p.NotificationSvc == nil || p.PaymentSvc == nil {
		return nil, errors.New("sweeper: missing dependency")
	}
	return &Sweeper{
		log:             p.Log.Named("sweeper"),
		clock:           p.Clock,
		cfg:             p.Cfg.Sweep,
		notificationSvc: p.NotificationSvc,
		paymentSvc:      p.PaymentSvc,
		locker:          p.Locker,
		metrics:         p.Metrics,
	}, nil
}

func (s *Sweeper) RunOnce(parent context.Context) error {
	var err error
	jobs := []struct {
		Name string
		Run  func(context.Context) (int, error)
	}{
		{"notification_retry", s.notificationSvc.RetrySweep},
		{"payment_reconcile", s.paymentSvc.ReconcileSweep},
	}
	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) runJob(parent context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	// With a locker configured only one replica runs each job per interval.
	// Without one the jobs still run; the claim queries keep them safe, just
	// not single-flight.
	if s.locker != nil {
		key := "perq:sweep:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			s.count(name, "lock_error")
			return fmt.Errorf("%s: %w", name, err)
		}
		if !ok {
			s.count(name, "skipped")
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, key, token); err != nil {
				s.log.Warn("release sweep lock", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	processed, err := fn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.count(name, "timeout")
			s.log.Warn("sweep job timed out", zap.String("job", name), zap.Error(err))
			return nil
		}
		s.count(name, "error")
		return fmt.Errorf("%s: %w", name, err)
	}

	s.count(name, "ok")
	if processed > 0 {
		s.log.Info("sweep job finished", zap.String("job", name), zap.Int("processed", processed))
	}
	return nil
}

func (s *Sweeper) count(job, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepRuns.WithLabelValues(job, outcome).Inc()
}
