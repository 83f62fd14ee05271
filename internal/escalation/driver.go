package escalation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Driver periodically ticks every active escalation. One logical clock
// drives all escalations; there is no per-action timer.
type Driver struct {
	engine   *Engine
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// DefaultTickInterval is how often the driver sweeps active escalations.
const DefaultTickInterval = 30 * time.Second

// NewDriver creates a tick driver for the engine.
func NewDriver(engine *Engine, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Driver{
		engine:   engine,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the tick loop.
func (d *Driver) Start(ctx context.Context) {
	slog.Info("starting escalation driver", "tick_interval", d.interval)

	d.wg.Add(1)
	go d.run(ctx)
}

// Stop gracefully stops the driver. An in-flight sweep finishes first.
func (d *Driver) Stop() {
	close(d.stopCh)
	d.wg.Wait()
	slog.Info("escalation driver stopped")
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.engine.AdvanceAll(ctx)
		}
	}
}
