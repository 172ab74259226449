package sqsasync

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Connection during construction in New.
type Option func(*Connection) error

// ErrorPolicy controls whether failed results reach their callback.
type ErrorPolicy string

const (
	// DeliverErrors reports the failure and then calls the callback with
	// (nil, err).
	DeliverErrors ErrorPolicy = "deliver"
	// ReportErrors reports the failure and skips the callback.
	ReportErrors ErrorPolicy = "report"
)

// ErrorReporter is told about every failed result and every callback panic.
// It runs on the goroutine that drains results.
type ErrorReporter func(operation, requestID string, err error)

// WithWorkers sets the worker pool size. The value must be greater than zero.
func WithWorkers(n int) Option {
	return func(c *Connection) error {
		if n <= 0 {
			return fmt.Errorf("workers must be > 0")
		}
		c.workers = n
		return nil
	}
}

// WithPoolName labels the worker pool metrics.
func WithPoolName(name string) Option {
	return func(c *Connection) error {
		c.poolName = name
		return nil
	}
}

// WithDrainInterval sets how often the scheduler drains completed results.
func WithDrainInterval(d time.Duration) Option {
	return func(c *Connection) error {
		if d <= 0 {
			return fmt.Errorf("drain interval must be > 0")
		}
		c.drainInterval = d
		return nil
	}
}

// WithDrainLimit caps how many results a single drain delivers. A negative
// value removes the cap; zero is rejected.
func WithDrainLimit(n int) Option {
	return func(c *Connection) error {
		if n == 0 {
			return fmt.Errorf("drain limit must not be 0")
		}
		c.drainLimit = n
		return nil
	}
}

// WithErrorPolicy selects how failed results are delivered.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(c *Connection) error {
		switch p {
		case DeliverErrors, ReportErrors:
			c.policy = p
			return nil
		default:
			return fmt.Errorf("unknown error policy %q", p)
		}
	}
}

// WithErrorReporter replaces the default reporter, which logs at warn level.
func WithErrorReporter(r ErrorReporter) Option {
	return func(c *Connection) error {
		if r == nil {
			return fmt.Errorf("error reporter must not be nil")
		}
		c.report = r
		return nil
	}
}

// WithLogger sets the logger used by the connection.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Connection) error {
		c.logger = l
		return nil
	}
}

// WithTracerProvider sets the provider used to trace executed operations.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Connection) error {
		if tp == nil {
			return fmt.Errorf("tracer provider must not be nil")
		}
		c.tracerProvider = tp
		return nil
	}
}
