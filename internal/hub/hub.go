// Package hub is a single-goroutine event loop. Tasks posted from any
// goroutine, one-shot timers and periodic timers all run on the goroutine
// that calls Run, one at a time.
package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rafidka/sqsasync/internal/workerpool"
)

// ErrRunning is returned by Run when the loop is already running.
var ErrRunning = errors.New("hub already running")

// Cancellable is a handle to a scheduled callback.
type Cancellable interface {
	Cancel()
}

// Hub runs callbacks serially on the goroutine that calls Run.
type Hub struct {
	clock  clock.Clock
	tasks  *workerpool.Queue[func()]
	wake   chan struct{}
	logger zerolog.Logger

	running uint32

	mu       sync.Mutex
	periodic map[*periodic]struct{}
}

// New returns a hub driven by clk. Pass clock.WallClock in production and a
// testclock in tests.
func New(clk clock.Clock) *Hub {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Hub{
		clock:    clk,
		tasks:    workerpool.NewQueue[func()](),
		wake:     make(chan struct{}, 1),
		logger:   log.With().Str("component", "hub").Logger(),
		periodic: make(map[*periodic]struct{}),
	}
}

// Post schedules fn to run on the loop. It never blocks and reports false once
// the hub is closed.
func (h *Hub) Post(fn func()) bool {
	if !h.tasks.Push(fn) {
		return false
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted tasks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&h.running, 0, 1) {
		return ErrRunning
	}
	defer atomic.StoreUint32(&h.running, 0)

	for {
		h.RunPending()
		select {
		case <-h.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunPending executes every task queued so far on the calling goroutine and
// returns how many ran. Tasks posted while it runs are also executed.
func (h *Hub) RunPending() int {
	n := 0
	for {
		fn, ok := h.tasks.TryPop()
		if !ok {
			return n
		}
		h.runTask(fn)
		n++
	}
}

func (h *Hub) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Msg("task panic")
		}
	}()
	fn()
}

// AfterFunc runs fn on the loop once d has elapsed.
func (h *Hub) AfterFunc(d time.Duration, fn func()) Cancellable {
	o := &oneShot{}
	o.timer = h.clock.AfterFunc(d, func() {
		h.Post(func() {
			if !o.cancelled.Load() {
				fn()
			}
		})
	})
	return o
}

type oneShot struct {
	timer     clock.Timer
	cancelled atomic.Bool
}

func (o *oneShot) Cancel() {
	o.cancelled.Store(true)
	o.timer.Stop()
}

// SchedulePeriodic runs fn on the loop every interval until cancelled. Ticks
// do not pile up: while one is waiting to run, further expirations are
// dropped. Once Cancel returns no new tick starts.
func (h *Hub) SchedulePeriodic(interval time.Duration, fn func()) Cancellable {
	p := &periodic{
		hub:      h,
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
	}
	h.mu.Lock()
	h.periodic[p] = struct{}{}
	h.mu.Unlock()

	go p.loop()
	return p
}

// Close cancels every periodic registration and rejects further posts.
// Already queued tasks can still be run with RunPending.
func (h *Hub) Close() {
	h.mu.Lock()
	regs := make([]*periodic, 0, len(h.periodic))
	for p := range h.periodic {
		regs = append(regs, p)
	}
	h.mu.Unlock()

	for _, p := range regs {
		p.Cancel()
	}
	h.tasks.Close()
}

type periodic struct {
	hub      *Hub
	interval time.Duration
	fn       func()

	pending   atomic.Bool
	cancelled atomic.Bool
	once      sync.Once
	stop      chan struct{}
}

func (p *periodic) loop() {
	for {
		t := p.hub.clock.NewTimer(p.interval)
		select {
		case <-t.Chan():
			if p.pending.CompareAndSwap(false, true) {
				p.hub.Post(p.tick)
			}
		case <-p.stop:
			t.Stop()
			return
		}
	}
}

func (p *periodic) tick() {
	p.pending.Store(false)
	if p.cancelled.Load() {
		return
	}
	p.fn()
}

func (p *periodic) Cancel() {
	p.once.Do(func() {
		p.cancelled.Store(true)
		close(p.stop)
		p.hub.mu.Lock()
		delete(p.hub.periodic, p)
		p.hub.mu.Unlock()
	})
}
