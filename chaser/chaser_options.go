package chaser

import (
	"time"

	"go.uber.org/zap"

	"github.com/CloudNativeWorks/license-chaser/chaser/registry"
)

// DefaultInterval is the pause between two requests of a subscription.
const DefaultInterval = 2 * time.Second

// Option configures a Chaser.
type Option func(*Chaser)

// WithInterval sets the sleep between cycles. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *Chaser) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chaser) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCriterion sets the initial selection criterion.
func WithCriterion(cr Criterion) Option {
	return func(c *Chaser) {
		c.criterion = cr
	}
}

// WithAutoLaunch sets whether a launch is requested once seats are available.
func WithAutoLaunch(enabled bool) Option {
	return func(c *Chaser) {
		c.autoLaunch = enabled
	}
}

// WithLister replaces the HTTP client used to fetch licenses.
func WithLister(l Lister) Option {
	return func(c *Chaser) {
		c.lister = l
	}
}

// WithClientOptions configures the HTTP client built by New.
// It has no effect when WithLister is used.
func WithClientOptions(opts ...ClientOption) Option {
	return func(c *Chaser) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// WithRegistry announces this machine in r while a subscription is active.
func WithRegistry(r registry.Registry) Option {
	return func(c *Chaser) {
		c.registry = r
	}
}

// WithFingerprint sets the registry identity of this machine.
// Default is GenerateFingerprint.
func WithFingerprint(fp string) Option {
	return func(c *Chaser) {
		c.fingerprint = fp
	}
}
