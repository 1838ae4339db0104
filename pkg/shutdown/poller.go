package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller runs work immediately and then once per interval until stopped
type Poller struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller whose runs are bounded by parent
func NewPoller(parent context.Context, name string, interval time.Duration, logger *zap.Logger) *Poller {
	ctx, cancel := context.WithCancel(parent)
	return &Poller{
		name:     name,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the polling loop. work should return promptly once ctx is done.
func (p *Poller) Start(work func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.logger.Info("Poller started",
			zap.String("poller", p.name),
			zap.Duration("interval", p.interval),
		)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		work(p.ctx)
		for {
			select {
			case <-p.ctx.Done():
				p.logger.Info("Poller stopped", zap.String("poller", p.name))
				return
			case <-ticker.C:
				work(p.ctx)
			}
		}
	}()
}

// Done is closed when the poller's context ends
func (p *Poller) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Shutdown cancels the loop and waits for the current run to finish
func (p *Poller) Shutdown(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("Poller shutdown timeout", zap.String("poller", p.name))
		return ctx.Err()
	}
}
