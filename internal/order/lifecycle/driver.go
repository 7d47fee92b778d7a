// Package lifecycle advances tracked orders through
// pending -> processing -> shipped -> delivered on a fixed step interval.
//
// A single cron scan (robfig/cron/v3) looks at every tracked order and moves
// each due order forward by one step. Orders that become terminal, either by
// delivery or by an external cancel, are dropped from scheduling without error.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/infrastructure/metrics"
)

type OrderTransitioner interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	Transition(ctx context.Context, id string, target domain.Status) (domain.Order, error)
}

type Config struct {
	StepInterval time.Duration
	ScanInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		StepInterval: 30 * time.Second,
		ScanInterval: time.Second,
	}
}

type outcome int

const (
	outcomeAdvanced outcome = iota
	outcomeDropped
	outcomeRetry
)

type Option func(*Driver)

func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

type Driver struct {
	orders  OrderTransitioner
	cfg     Config
	now     func() time.Time
	cron    *cron.Cron
	logger  *zap.Logger
	metrics *metrics.LifecycleMetrics

	mu  sync.Mutex
	due map[string]time.Time

	// scanMu keeps Tick single-flight so an order is never advanced twice
	// within one interval.
	scanMu sync.Mutex
}

func New(orders OrderTransitioner, cfg Config, logger *zap.Logger, m *metrics.LifecycleMetrics, opts ...Option) *Driver {
	defaults := DefaultConfig()
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = defaults.StepInterval
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaults.ScanInterval
	}
	if m == nil {
		m = metrics.NewLifecycleMetrics(nil)
	}

	logger = logger.With(zap.String("component", "lifecycle_driver"))
	cl := cronLogger{logger: logger.Sugar()}

	d := &Driver{
		orders:  orders,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
		metrics: m,
		due:     make(map[string]time.Time),
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Track schedules orderID; its first step is due one interval after since.
func (d *Driver) Track(orderID string, since time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.due[orderID]; ok {
		return
	}
	d.due[orderID] = since.Add(d.cfg.StepInterval)
	d.metrics.Tracked.Set(float64(len(d.due)))
}

func (d *Driver) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.due)
}

func (d *Driver) Start() error {
	spec := fmt.Sprintf("@every %s", d.cfg.ScanInterval)
	if _, err := d.cron.AddFunc(spec, func() {
		d.Tick(context.Background(), d.now())
	}); err != nil {
		return fmt.Errorf("scheduling lifecycle scan: %w", err)
	}

	d.cron.Start()
	d.logger.Info("lifecycle driver started",
		zap.Duration("stepInterval", d.cfg.StepInterval),
		zap.Duration("scanInterval", d.cfg.ScanInterval),
	)
	return nil
}

// Stop halts the scheduler and waits for a running scan to finish.
func (d *Driver) Stop() {
	<-d.cron.Stop().Done()
	d.logger.Info("lifecycle driver stopped")
}

// Tick runs one scan: every order due at now is advanced by a single step.
func (d *Driver) Tick(ctx context.Context, now time.Time) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	d.mu.Lock()
	var ready []string
	for id, at := range d.due {
		if !at.After(now) {
			ready = append(ready, id)
		}
	}
	d.mu.Unlock()

	for _, id := range ready {
		result := d.advance(ctx, id)

		d.mu.Lock()
		switch result {
		case outcomeDropped:
			delete(d.due, id)
			d.metrics.Dropped.Inc()
		case outcomeAdvanced:
			d.due[id] = now.Add(d.cfg.StepInterval)
		case outcomeRetry:
			// left due; picked up again on the next scan
		}
		d.metrics.Tracked.Set(float64(len(d.due)))
		d.mu.Unlock()
	}
}

func (d *Driver) advance(ctx context.Context, id string) outcome {
	order, err := d.orders.Get(ctx, id)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return outcomeDropped
		}
		d.metrics.Errors.Inc()
		d.logger.Error("loading order", zap.String("orderId", id), zap.Error(err))
		return outcomeRetry
	}

	next, ok := order.Status.Next()
	if !ok {
		d.logger.Debug("order is terminal, dropping", zap.String("orderId", id), zap.String("status", string(order.Status)))
		return outcomeDropped
	}

	// Transition re-checks the status under the order lock, so a cancel that
	// lands after the Get above surfaces here as an invalid transition.
	updated, err := d.orders.Transition(ctx, id, next)
	if err != nil {
		if ite, ok := apperrors.IsInvalidTransitionError(err); ok {
			d.logger.Debug("order moved concurrently, dropping",
				zap.String("orderId", id),
				zap.String("status", ite.From),
				zap.Bool("terminal", ite.AlreadyTerminal),
			)
			return outcomeDropped
		}
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return outcomeDropped
		}
		d.metrics.Errors.Inc()
		d.logger.Error("advancing order", zap.String("orderId", id), zap.String("target", string(next)), zap.Error(err))
		return outcomeRetry
	}

	d.metrics.Advanced.WithLabelValues(string(updated.Status)).Inc()
	if updated.Status.IsTerminal() {
		return outcomeDropped
	}
	return outcomeAdvanced
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
