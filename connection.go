// Package sqsasync turns a blocking SQS client into a callback-driven one for
// a single-threaded event loop.
//
// Submitted operations run on a pool of worker goroutines. Their results wait
// in a completion queue until the scheduler's periodic drain hands them to
// their callbacks, so callbacks always run on the loop goroutine, one at a
// time.
package sqsasync

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errs "github.com/rafidka/sqsasync/internal/errors"
	"github.com/rafidka/sqsasync/internal/hub"
	"github.com/rafidka/sqsasync/internal/invoke"
	"github.com/rafidka/sqsasync/internal/workerpool"
)

const (
	// DefaultWorkers is the worker pool size used unless WithWorkers is given.
	DefaultWorkers = workerpool.DefaultWorkers
	// DefaultDrainInterval is how often completed results are delivered.
	DefaultDrainInterval = 100 * time.Millisecond
	// DefaultDrainLimit caps the results delivered by a single drain.
	DefaultDrainLimit = 1000
)

const tracerName = "github.com/rafidka/sqsasync"

// Cancellable is a handle to a periodic registration.
type Cancellable = hub.Cancellable

// Scheduler runs fn on the event loop every interval until cancelled.
// *hub.Hub satisfies it.
type Scheduler interface {
	SchedulePeriodic(interval time.Duration, fn func()) Cancellable
}

// Connection is the asynchronous front of a blocking client.
type Connection struct {
	caller invoke.Caller
	sched  Scheduler

	workers       int
	poolName      string
	drainInterval time.Duration
	drainLimit    int
	policy        ErrorPolicy
	report        ErrorReporter

	logger         zerolog.Logger
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	pool    *workerpool.Pool[*Request]
	results *workerpool.Queue[*Result]

	draining atomic.Bool // one drain at a time

	mu           sync.Mutex
	registration Cancellable

	stopped uint32
}

// New wraps client and registers the result drain with sched.
//
// client is used directly when it implements invoke.Caller; otherwise its
// methods are looked up by operation name. It must be safe for concurrent use
// by the worker goroutines.
func New(client any, sched Scheduler, opts ...Option) (*Connection, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	if sched == nil {
		return nil, fmt.Errorf("scheduler must not be nil")
	}

	c := &Connection{
		caller:        invoke.Wrap(client),
		sched:         sched,
		workers:       DefaultWorkers,
		poolName:      "connection",
		drainInterval: DefaultDrainInterval,
		drainLimit:    DefaultDrainLimit,
		policy:        DeliverErrors,
		logger:        log.With().Str("component", "sqsasync").Logger(),
		results:       workerpool.NewQueue[*Result](),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.report == nil {
		c.report = c.logError
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	c.pool = workerpool.New(workerpool.Config{
		Name:         c.poolName,
		Workers:      c.workers,
		PanicHandler: c.recoverRequest,
	}, c.execute)
	c.registration = sched.SchedulePeriodic(c.drainInterval, func() { c.Drain() })

	c.logger.Debug().
		Int("workers", c.workers).
		Dur("drain_interval", c.drainInterval).
		Int("drain_limit", c.drainLimit).
		Str("error_policy", string(c.policy)).
		Msg("connection started")
	return c, nil
}

// Submit queues operation and returns immediately. The callback, if any,
// receives the outcome on a later drain; without one the request is
// fire-and-forget. The operation name is not validated here; an unknown name
// surfaces as a ResolutionError on the result.
func (c *Connection) Submit(operation string, cb Callback, kwargs Kwargs, args ...any) error {
	return c.SubmitRequest(Request{
		Operation: operation,
		Args:      args,
		Kwargs:    kwargs,
		Callback:  cb,
	})
}

// SubmitRequest queues req with its explicit interest.
func (c *Connection) SubmitRequest(req Request) error {
	switch req.Interest {
	case InterestAuto:
		if req.Callback != nil {
			req.Interest = Observed
		} else {
			req.Interest = FireAndForget
		}
	case Observed:
		if req.Callback == nil {
			return ErrNoCallback
		}
	case FireAndForget:
	default:
		return fmt.Errorf("unknown interest %d", req.Interest)
	}
	if atomic.LoadUint32(&c.stopped) == 1 {
		return ErrConnectionStopped
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	// The worker must not see later changes the caller makes to these.
	req.Args = slices.Clone(req.Args)
	req.Kwargs = maps.Clone(req.Kwargs)
	if err := c.pool.Submit(&req); err != nil {
		return ErrConnectionStopped
	}
	return nil
}

// Drain delivers queued results on the calling goroutine, up to the
// configured limit, and returns how many were delivered. The scheduler calls
// it every drain interval; it may also be called directly, e.g. after Close.
// A call made while another drain is running, including one from inside a
// callback, delivers nothing and returns 0.
func (c *Connection) Drain() int {
	if !c.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer c.draining.Store(false)

	n := 0
	for c.drainLimit < 0 || n < c.drainLimit {
		res, ok := c.results.TryPop()
		if !ok {
			break
		}
		n++
		c.deliver(res)
	}
	if n > 0 {
		drainBatchSize.Observe(float64(n))
	}
	return n
}

// Pending reports how many results wait for the next drain.
func (c *Connection) Pending() int { return c.results.Len() }

// Queued reports how many requests wait for a worker.
func (c *Connection) Queued() int { return c.pool.Len() }

// Close cancels the periodic drain. Workers keep running and results keep
// accumulating; they can still be delivered with Drain. Close is idempotent.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registration == nil {
		return
	}
	c.registration.Cancel()
	c.registration = nil
	c.logger.Debug().Int("pending", c.results.Len()).Msg("drain cancelled")
}

// Stop refuses new requests, waits for the workers to finish the queued ones
// and joins them. If ctx ends first, queued requests are dropped, in-flight
// operations see their context cancelled and ctx.Err() is returned. Stop does
// not cancel the drain; results of the final requests are still delivered.
func (c *Connection) Stop(ctx context.Context) error {
	atomic.StoreUint32(&c.stopped, 1)
	return c.pool.Stop(ctx)
}

// execute runs on a worker goroutine.
func (c *Connection) execute(ctx context.Context, req *Request) {
	ctx, span := c.tracer.Start(ctx, "sqsasync."+req.Operation,
		trace.WithAttributes(
			attribute.String("sqsasync.request_id", req.ID),
			attribute.String("sqsasync.interest", req.Interest.String()),
		))
	defer span.End()

	value, err := c.caller.Call(ctx, req.Operation, req.Args, req.Kwargs)
	if err = errs.Classify(req.Operation, err); err != nil {
		value = nil
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.complete(req, value, err)
}

// recoverRequest turns a panic that escaped the caller into a failed result.
func (c *Connection) recoverRequest(item any, recovered any) {
	req, ok := item.(*Request)
	if !ok {
		return
	}
	err := &errs.ExecutionError{
		Operation: req.Operation,
		Err:       fmt.Errorf("panic: %v", recovered),
	}
	c.complete(req, nil, err)
}

func (c *Connection) complete(req *Request, value any, err error) {
	if req.Interest != Observed {
		resultsDiscardedTotal.Inc()
		ev := c.logger.Debug().Str("request_id", req.ID).Str("operation", req.Operation)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("result discarded")
		return
	}
	c.results.Push(&Result{
		RequestID: req.ID,
		Operation: req.Operation,
		Value:     value,
		Err:       err,
		Callback:  req.Callback,
	})
}

func (c *Connection) deliver(res *Result) {
	if res.Err != nil {
		resultsDeliveredTotal.WithLabelValues("error").Inc()
		c.safeReport(res.Operation, res.RequestID, res.Err)
		if c.policy == ReportErrors {
			return
		}
	} else {
		resultsDeliveredTotal.WithLabelValues("success").Inc()
	}
	c.safeCallback(res)
}

func (c *Connection) safeCallback(res *Result) {
	if res.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			callbackPanicsTotal.Inc()
			c.safeReport(res.Operation, res.RequestID, fmt.Errorf("%w: %v", ErrCallbackPanic, r))
		}
	}()
	res.Callback(res.Value, res.Err)
}

func (c *Connection) safeReport(operation, requestID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("error reporter panic")
		}
	}()
	c.report(operation, requestID, err)
}

func (c *Connection) logError(operation, requestID string, err error) {
	c.logger.Warn().
		Str("operation", operation).
		Str("request_id", requestID).
		Err(err).
		Msg("operation failed")
}
