// Package workerpool provides a fixed-size pool of goroutines fed by an
// unbounded FIFO admission queue.
//
// Submission never blocks. Items are handed to workers in the order they were
// pushed; with more than one worker, completion order is unspecified. Stop
// closes admission, lets the workers finish what is already queued and joins
// them, so no goroutine outlives the pool.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler processes one item on a worker goroutine. ctx is cancelled only
// when Stop gives up waiting.
type Handler[T any] func(ctx context.Context, item T)

// Pool executes a Handler for every submitted item on Config.Workers
// goroutines.
type Pool[T any] struct {
	cfg    Config
	queue  *Queue[T]
	handle Handler[T]
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closed uint32 // 0 → running, 1 → closed
	wg     sync.WaitGroup
}

// New constructs the pool and starts its workers.
func New[T any](cfg Config, handle Handler[T]) *Pool[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[T]{
		cfg:    cfg,
		queue:  NewQueue[T](),
		handle: handle,
		logger: log.With().Str("component", "workerpool").Str("pool", cfg.Name).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	return p
}

// Submit enqueues item without blocking. It returns ErrPoolClosed once Stop
// has been called.
func (p *Pool[T]) Submit(item T) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrPoolClosed
	}
	if !p.queue.Push(item) {
		return ErrPoolClosed
	}
	submissionsTotal.WithLabelValues(p.cfg.Name).Inc()
	return nil
}

// Len reports how many items are waiting for a worker.
func (p *Pool[T]) Len() int { return p.queue.Len() }

// Workers reports the configured pool size.
func (p *Pool[T]) Workers() int { return p.cfg.Workers }

// Stop closes admission and waits for every worker to drain the queue and
// exit. If ctx ends first, queued items are discarded, in-flight handlers see
// their context cancelled, and ctx.Err() is returned once the workers are
// gone. Stop is idempotent and safe for concurrent use.
func (p *Pool[T]) Stop(ctx context.Context) error {
	if atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		p.logger.Debug().Int("queued", p.queue.Len()).Msg("stopping worker pool")
		p.queue.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Debug().Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		dropped := p.queue.Discard()
		p.cancel()
		<-done
		p.logger.Warn().Int("dropped", dropped).Msg("worker pool stop deadline exceeded")
		return ctx.Err()
	}
}

// Close lets Pool satisfy io.Closer.
func (p *Pool[T]) Close() error {
	return p.Stop(context.Background())
}

func (p *Pool[T]) runWorker(idx int) {
	defer p.wg.Done()

	for {
		item, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.run(idx, item)
		queueDepth.WithLabelValues(p.cfg.Name).Set(float64(p.queue.Len()))
	}
}

// run invokes the handler, keeping a panicking item from killing the worker.
func (p *Pool[T]) run(idx int, item T) {
	start := time.Now()
	defer func() {
		runDuration.WithLabelValues(p.cfg.Name).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			panicsTotal.WithLabelValues(p.cfg.Name).Inc()
			p.logger.Error().Int("worker", idx).Interface("panic", r).Msg("handler panic")
			p.safePanicHandler(item, r)
		}
	}()
	p.handle(p.ctx, item)
}

func (p *Pool[T]) safePanicHandler(item T, recovered any) {
	if p.cfg.PanicHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("panic handler panic")
		}
	}()
	p.cfg.PanicHandler(item, recovered)
}
