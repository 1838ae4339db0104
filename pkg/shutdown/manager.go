package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "remotectl_shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotectl_shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc represents a function that shuts down a component
type ShutdownFunc func(context.Context) error

// Component represents a registered shutdown component
type Component struct {
	Name         string
	ShutdownFunc ShutdownFunc
}

// Manager stops registered components in reverse registration order, one at a
// time, within a shared timeout
type Manager struct {
	logger     *zap.Logger
	components []Component
	mu         sync.Mutex
	timeout    time.Duration
	once       sync.Once
	errs       map[string]error
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a shutdown function. The last registered component stops first.
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, Component{Name: name, ShutdownFunc: fn})

	sm.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// RegisterNoErr registers a shutdown function that cannot fail
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown stops every component and returns the failures by component name.
// Only the first call does any work; later calls return the same result.
func (sm *Manager) Shutdown() map[string]error {
	sm.once.Do(func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
		defer cancel()

		sm.mu.Lock()
		components := make([]Component, len(sm.components))
		copy(components, sm.components)
		sm.mu.Unlock()

		sm.logger.Info("Starting graceful shutdown",
			zap.Int("component_count", len(components)),
			zap.Duration("timeout", sm.timeout),
		)

		errs := make(map[string]error)
		for i := len(components) - 1; i >= 0; i-- {
			comp := components[i]
			if ctx.Err() != nil {
				errs[comp.Name] = ctx.Err()
				shutdownErrors.WithLabelValues(comp.Name).Inc()
				continue
			}

			compStart := time.Now()
			if err := comp.ShutdownFunc(ctx); err != nil {
				errs[comp.Name] = err
				shutdownErrors.WithLabelValues(comp.Name).Inc()
				sm.logger.Error("Component shutdown failed",
					zap.String("component", comp.Name),
					zap.Error(err),
					zap.Duration("elapsed", time.Since(compStart)),
				)
				continue
			}
			sm.logger.Debug("Component shut down",
				zap.String("component", comp.Name),
				zap.Duration("elapsed", time.Since(compStart)),
			)
		}

		elapsed := time.Since(start)
		shutdownDuration.Observe(elapsed.Seconds())
		if len(errs) > 0 {
			sm.logger.Error("Graceful shutdown completed with errors",
				zap.Int("error_count", len(errs)),
				zap.Duration("elapsed", elapsed),
			)
		} else {
			sm.logger.Info("Graceful shutdown completed",
				zap.Duration("elapsed", elapsed),
			)
		}
		sm.errs = errs
	})
	return sm.errs
}
