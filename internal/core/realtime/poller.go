package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// poller owns the fallback ticker. At most one loop runs at a time.
type poller struct {
	interval time.Duration
	onTick   func(ctx context.Context)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(interval time.Duration, onTick func(ctx context.Context), logger *slog.Logger) *poller {
	return &poller{
		interval: interval,
		onTick:   onTick,
		logger:   logger,
	}
}

// Start launches the loop. It returns false when the interval is zero or a
// loop is already running.
func (p *poller) Start() bool {
	if p.interval <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(ctx, done)
	p.logger.Debug("Polling started", "interval", p.interval)
	return true
}

// Stop ends the loop and waits for it to exit. Ticks already handed to
// onTick see their context cancelled. Safe to call when not running.
func (p *poller) Stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	p.logger.Debug("Polling stopped")
	return true
}

// Active reports whether the loop is running.
func (p *poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Ticker periods are fixed, so slow ticks never push later ones back.
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if p.onTick != nil {
				go p.onTick(ctx)
			}
		}
	}
}
