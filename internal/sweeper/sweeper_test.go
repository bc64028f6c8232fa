package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/perq/internal/clock"
	"github.com/smallbiznis/perq/internal/config"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/perq/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type notificationSweepStub struct {
	mu    sync.Mutex
	runs  int
	fail  error
	batch int
}

func (s *notificationSweepStub) Enqueue(ctx context.Context, req notificationdomain.EnqueueRequest) (notificationdomain.Notification, error) {
	return notificationdomain.Notification{}, nil
}

func (s *notificationSweepStub) RetrySweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return s.batch, s.fail
}

func (s *notificationSweepStub) List(ctx context.Context, req notificationdomain.ListRequest) (notificationdomain.ListResponse, error) {
	return notificationdomain.ListResponse{}, nil
}

func (s *notificationSweepStub) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

type paymentSweepStub struct {
	mu   sync.Mutex
	runs int
	fail error
}

func (s *paymentSweepStub) IngestWebhook(ctx context.Context, provider string, payload []byte) error {
	return nil
}

func (s *paymentSweepStub) CreateLink(ctx context.Context, req paymentdomain.CreateLinkRequest) (paymentdomain.PaymentLink, error) {
	return paymentdomain.PaymentLink{}, nil
}

func (s *paymentSweepStub) ReconcileSweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return 0, s.fail
}

func newSweeper(t *testing.T, notifications *notificationSweepStub, payments *paymentSweepStub) *Sweeper {
	t.Helper()

	s, err := New(Params{
		Log:             zap.NewNop(),
		Clock:           clock.NewSystemClock(),
		Cfg:             config.Config{Sweep: config.SweepConfig{RunInterval: time.Minute, LockTTL: time.Minute}},
		NotificationSvc: notifications,
		PaymentSvc:      payments,
	})
	require.NoError(t, err)
	return s
}

func TestRunOnce_RunsAllJobs(t *testing.T) {
	notifications := &notificationSweepStub{batch: 2}
	payments := &paymentSweepStub{}
	s := newSweeper(t, notifications, payments)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, notifications.runs)
	assert.Equal(t, 1, payments.runs)
}

func TestRunOnce_OneFailureDoesNotStopOthers(t *testing.T) {
	notifications := &notificationSweepStub{fail: errors.New("db down")}
	payments := &paymentSweepStub{}
	s := newSweeper(t, notifications, payments)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification_retry")
	assert.Equal(t, 1, payments.runs)
}

func TestRunOnce_TimeoutIsNotAnError(t *testing.T) {
	notifications := &notificationSweepStub{fail: context.DeadlineExceeded}
	payments := &paymentSweepStub{}
	s := newSweeper(t, notifications, payments)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, payments.runs)
}

func TestRun_StopsRunLoopOnShutdown(t *testing.T) {
	notifications := &notificationSweepStub{}
	payments := &paymentSweepStub{}
	s := newSweeper(t, notifications, payments)

	lc := fxtest.NewLifecycle(t)
	Run(lc, s)
	lc.RequireStart()

	// RequireStop returns only after the run loop observed the cancel and
	// exited; a hang here would fail the stop hook's deadline.
	lc.RequireStop()
	assert.GreaterOrEqual(t, notifications.runCount(), 1)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop(), Clock: clock.NewSystemClock()})
	assert.Error(t, err)
}
