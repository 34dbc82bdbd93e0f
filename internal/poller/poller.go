package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mesafina/ordersync/internal/model"
)

// OrderSource lists the current orders. *api.Client satisfies it.
type OrderSource interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
}

// ViewSink is a reseedable view. *view.Reconciler satisfies it.
type ViewSink interface {
	Name() string
	ReplaceAll(orders []model.Order)
}

// Config holds reseeder configuration.
type Config struct {
	Interval time.Duration // Reseed interval (default: 5m)
	Timeout  time.Duration // Per-listing timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Timeout:  10 * time.Second,
	}
}

// Reseeder periodically re-derives every view from a full REST listing.
type Reseeder struct {
	cfg    Config
	source OrderSource
	views  []ViewSink
	logger *slog.Logger

	kick chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Reseeder over the given views.
func New(cfg Config, source OrderSource, views []ViewSink, logger *slog.Logger) *Reseeder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reseeder{
		cfg:    cfg,
		source: source,
		views:  views,
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// Start begins the reseed loop, seeding once immediately.
func (r *Reseeder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.reseedOnce(); err != nil {
		// Non-fatal: the views start empty and heal on the next tick.
		r.logger.Warn("initial seed failed", "error", err)
	}

	r.wg.Add(1)
	go r.run()

	r.logger.Info("reseeder started",
		"interval", r.cfg.Interval,
		"views", len(r.views),
	)
	return nil
}

// Stop shuts the loop down, waiting up to ctx's deadline.
func (r *Reseeder) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reseeder stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kick requests an immediate reseed on top of the regular cadence. Wired to
// the connection's connect notification so views self-heal right after a
// reconnect instead of waiting out the interval.
func (r *Reseeder) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Reseeder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		}

		if err := r.reseedOnce(); err != nil {
			r.logger.Warn("reseed failed", "error", err)
		}
	}
}

// reseedOnce lists orders once and replaces every view's collection.
func (r *Reseeder) reseedOnce() error {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	orders, err := r.source.ListOrders(ctx)
	if err != nil {
		return err
	}

	for _, v := range r.views {
		v.ReplaceAll(orders)
	}

	r.logger.Debug("views reseeded",
		"orders", len(orders),
		"views", len(r.views),
		"duration", time.Since(start),
	)
	return nil
}
