package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around script injection.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
}

// Injector runs a script in a page.
type Injector interface {
	Inject(ctx context.Context, script string) error
}

// BreakerInjector wraps an Injector with circuit breaker protection. Once the
// tab stops answering, responses fail fast instead of each waiting out the
// action timeout.
type BreakerInjector struct {
	inner   Injector
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerInjector wraps inner. Zero config fields take defaults.
func NewBreakerInjector(inner Injector, cfg BreakerConfig, logger *slog.Logger) *BreakerInjector {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "browser:inject",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A cancelled caller says nothing about the page's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerInjector{inner: inner, breaker: cb}
}

// Inject implements Injector. Calls are routed through the circuit breaker.
func (b *BreakerInjector) Inject(ctx context.Context, script string) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Inject(ctx, script)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("page injection circuit open: %w", err)
	}
	return err
}

// State returns the current circuit breaker state for monitoring.
func (b *BreakerInjector) State() gobreaker.State {
	return b.breaker.State()
}
