package sqsasync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rafidka/sqsasync/internal/invoke"
)

const waitTimeout = 2 * time.Second

// manualScheduler records the drain registration and only ticks when told to.
type manualScheduler struct {
	mu        sync.Mutex
	interval  time.Duration
	fn        func()
	cancelled bool
}

func (s *manualScheduler) SchedulePeriodic(interval time.Duration, fn func()) Cancellable {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.fn = fn
	return s
}

func (s *manualScheduler) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *manualScheduler) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Tick runs the registered drain unless it was cancelled.
func (s *manualScheduler) Tick() {
	s.mu.Lock()
	fn, cancelled := s.fn, s.cancelled
	s.mu.Unlock()
	if fn != nil && !cancelled {
		fn()
	}
}

type fakeSQS struct {
	mu    sync.Mutex
	calls []invoke.Kwargs

	deleted atomic.Int32
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, kwargs map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kwargs)
	f.mu.Unlock()
	return map[string]any{
		"Messages": []any{map[string]any{"Body": "hello", "ReceiptHandle": "rh-1"}},
	}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, kwargs map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kwargs)
	f.mu.Unlock()
	f.deleted.Add(1)
	return map[string]any{}, nil
}

func (f *fakeSQS) Echo(v int) int { return v }

func (f *fakeSQS) Fail() error { return errors.New("service unavailable") }

func (f *fakeSQS) lastCall() invoke.Kwargs {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func newTestConnection(t *testing.T, client any, opts ...Option) (*Connection, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	conn, err := New(client, sched, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = conn.Stop(ctx)
	})
	return conn, sched
}

func waitPending(t *testing.T, conn *Connection, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return conn.Pending() == n }, waitTimeout, time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{})

	require.Equal(t, DefaultDrainInterval, sched.interval)
	require.Equal(t, DefaultWorkers, conn.pool.Workers())
	require.Equal(t, DeliverErrors, conn.policy)
	require.Equal(t, DefaultDrainLimit, conn.drainLimit)
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New(nil, &manualScheduler{})
	require.Error(t, err)

	_, err = New(&fakeSQS{}, nil)
	require.Error(t, err)

	_, err = New(&fakeSQS{}, &manualScheduler{}, WithWorkers(0))
	require.Error(t, err)

	_, err = New(&fakeSQS{}, &manualScheduler{}, WithErrorPolicy("shout"))
	require.Error(t, err)

	_, err = New(&fakeSQS{}, &manualScheduler{}, WithDrainLimit(0))
	require.Error(t, err)
}

func TestSubmit_SingleWorkerPreservesOrder(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{}, WithWorkers(1))

	var got []int
	for i := 0; i < 20; i++ {
		require.NoError(t, conn.Submit("echo", func(v any, err error) {
			require.NoError(t, err)
			got = append(got, v.(int))
		}, nil, i))
	}
	waitPending(t, conn, 20)
	sched.Tick()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, got)
}

func TestSubmit_FireAndForgetProducesNoResult(t *testing.T) {
	client := &fakeSQS{}
	sched := &manualScheduler{}
	conn, err := New(client, sched)
	require.NoError(t, err)

	require.NoError(t, conn.DeleteMessage("http://q", "rh-1", nil))
	require.NoError(t, conn.Stop(context.Background()))

	require.EqualValues(t, 1, client.deleted.Load())
	require.Zero(t, conn.Pending())
	require.Zero(t, conn.Drain())
}

func TestSubmit_ExactlyOneOutcome(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{}, WithWorkers(4))

	var calls atomic.Int32
	ops := []string{"echo", "fail", "no_such_thing"}
	for _, op := range ops {
		var args []any
		if op == "echo" {
			args = []any{7}
		}
		require.NoError(t, conn.Submit(op, func(v any, err error) {
			calls.Add(1)
			if err != nil {
				assert.Nil(t, v)
			}
		}, nil, args...))
	}
	waitPending(t, conn, len(ops))
	sched.Tick()
	sched.Tick()
	require.EqualValues(t, len(ops), calls.Load())
}

func TestSubmit_ResolutionAndExecutionErrors(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{})

	errCh := make(map[string]error)
	record := func(op string) Callback {
		return func(_ any, err error) { errCh[op] = err }
	}
	require.NoError(t, conn.Submit("no_such_thing", record("no_such_thing"), nil))
	require.NoError(t, conn.Submit("fail", record("fail"), nil))
	waitPending(t, conn, 2)
	sched.Tick()

	var re *ResolutionError
	require.ErrorAs(t, errCh["no_such_thing"], &re)
	require.Equal(t, "no_such_thing", re.Operation)
	require.ErrorIs(t, errCh["no_such_thing"], ErrResolution)

	var ee *ExecutionError
	require.ErrorAs(t, errCh["fail"], &ee)
	require.Equal(t, "fail", ee.Operation)
	require.ErrorContains(t, errCh["fail"], "service unavailable")
}

func TestSubmit_CallerPanicBecomesExecutionError(t *testing.T) {
	caller := invoke.CallerFunc(func(context.Context, string, []any, invoke.Kwargs) (any, error) {
		panic("kaboom")
	})
	conn, sched := newTestConnection(t, caller)

	var got error
	require.NoError(t, conn.Submit("anything", func(_ any, err error) { got = err }, nil))
	waitPending(t, conn, 1)
	sched.Tick()
	require.ErrorIs(t, got, ErrExecution)
	require.ErrorContains(t, got, "kaboom")
}

func TestSubmitRequest_Interest(t *testing.T) {
	conn, _ := newTestConnection(t, &fakeSQS{})

	err := conn.SubmitRequest(Request{Operation: "echo", Args: []any{1}, Interest: Observed})
	require.ErrorIs(t, err, ErrNoCallback)

	// A callback on a fire-and-forget request is never called.
	called := false
	require.NoError(t, conn.SubmitRequest(Request{
		Operation: "echo",
		Args:      []any{1},
		Callback:  func(any, error) { called = true },
		Interest:  FireAndForget,
	}))
	require.NoError(t, conn.Stop(context.Background()))
	require.Zero(t, conn.Drain())
	require.False(t, called)
}

func TestSubmit_CopiesArgsAndKwargs(t *testing.T) {
	release := make(chan struct{})
	type seen struct {
		queueURL any
		arg      any
	}
	got := make(chan seen, 1)
	client := CallerFunc(func(_ context.Context, op string, args []any, kwargs Kwargs) (any, error) {
		if op == "block" {
			<-release
			return nil, nil
		}
		got <- seen{queueURL: kwargs["QueueUrl"], arg: args[0]}
		return nil, nil
	})
	conn, _ := newTestConnection(t, client, WithWorkers(1))

	// The single worker runs "block" first and holds "record" in the queue.
	require.NoError(t, conn.Submit("block", nil, nil))

	kwargs := Kwargs{"QueueUrl": "q1"}
	args := []any{"a1"}
	require.NoError(t, conn.Submit("record", nil, kwargs, args...))
	kwargs["QueueUrl"] = "changed"
	args[0] = "changed"
	close(release)

	select {
	case s := <-got:
		require.Equal(t, "q1", s.queueURL)
		require.Equal(t, "a1", s.arg)
	case <-time.After(waitTimeout):
		t.Fatal("request did not run")
	}
}

func TestSubmit_AfterStop(t *testing.T) {
	conn, _ := newTestConnection(t, &fakeSQS{})
	require.NoError(t, conn.Stop(context.Background()))
	require.ErrorIs(t, conn.Submit("echo", nil, nil, 1), ErrConnectionStopped)
}

func TestErrorPolicy_Report(t *testing.T) {
	var reported []string
	conn, sched := newTestConnection(t, &fakeSQS{},
		WithErrorPolicy(ReportErrors),
		WithErrorReporter(func(op, id string, err error) {
			require.NotEmpty(t, id)
			require.Error(t, err)
			reported = append(reported, op)
		}))

	called := false
	require.NoError(t, conn.Submit("fail", func(any, error) { called = true }, nil))
	waitPending(t, conn, 1)
	sched.Tick()

	require.Equal(t, []string{"fail"}, reported)
	require.False(t, called)
}

func TestErrorPolicy_DeliverAlsoReports(t *testing.T) {
	var reported int
	conn, sched := newTestConnection(t, &fakeSQS{},
		WithErrorReporter(func(string, string, error) { reported++ }))

	var got error
	require.NoError(t, conn.Submit("fail", func(_ any, err error) { got = err }, nil))
	waitPending(t, conn, 1)
	sched.Tick()

	require.Equal(t, 1, reported)
	require.ErrorIs(t, got, ErrExecution)
}

func TestDrain_CallbackPanicIsReported(t *testing.T) {
	var reported []error
	conn, sched := newTestConnection(t, &fakeSQS{}, WithWorkers(1),
		WithErrorReporter(func(_, _ string, err error) { reported = append(reported, err) }))

	second := false
	require.NoError(t, conn.Submit("echo", func(any, error) { panic("bad callback") }, nil, 1))
	require.NoError(t, conn.Submit("echo", func(any, error) { second = true }, nil, 2))
	waitPending(t, conn, 2)
	sched.Tick()

	require.True(t, second)
	require.Len(t, reported, 1)
	require.ErrorIs(t, reported[0], ErrCallbackPanic)
}

func TestDrain_RespectsLimit(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{}, WithDrainLimit(2))

	for i := 0; i < 5; i++ {
		require.NoError(t, conn.Submit("echo", func(any, error) {}, nil, i))
	}
	waitPending(t, conn, 5)

	sched.Tick()
	require.Equal(t, 3, conn.Pending())
	require.Equal(t, 2, conn.Drain())
	require.Equal(t, 1, conn.Drain())
	require.Zero(t, conn.Drain())
}

func TestDrain_Unbounded(t *testing.T) {
	conn, _ := newTestConnection(t, &fakeSQS{}, WithDrainLimit(-1))

	for i := 0; i < 1500; i++ {
		require.NoError(t, conn.Submit("echo", func(any, error) {}, nil, i))
	}
	waitPending(t, conn, 1500)
	require.Equal(t, 1500, conn.Drain())
}

func TestDrain_CallbacksNeverOverlap(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{}, WithWorkers(8), WithDrainLimit(-1))

	var active, maxActive atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, conn.Submit("echo", func(any, error) {
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			time.Sleep(100 * time.Microsecond)
			active.Add(-1)
		}, nil, i))
	}
	waitPending(t, conn, 50)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Tick()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxActive.Load())
}

func TestDrain_NestedCallReturnsZero(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{})

	nested := -1
	require.NoError(t, conn.Submit("echo", func(any, error) { nested = conn.Drain() }, nil, 1))
	second := false
	require.NoError(t, conn.Submit("echo", func(any, error) { second = true }, nil, 2))
	waitPending(t, conn, 2)

	sched.Tick()
	require.Zero(t, nested)
	require.True(t, second)
	require.Zero(t, conn.Pending())
}

func TestClose_StopsTicksButKeepsResults(t *testing.T) {
	conn, sched := newTestConnection(t, &fakeSQS{})

	called := false
	require.NoError(t, conn.Submit("echo", func(any, error) { called = true }, nil, 1))
	waitPending(t, conn, 1)

	conn.Close()
	conn.Close()
	require.True(t, sched.isCancelled())

	sched.Tick()
	require.False(t, called)
	require.Equal(t, 1, conn.Pending())

	require.Equal(t, 1, conn.Drain())
	require.True(t, called)
}

func TestReceiveMessage_Kwargs(t *testing.T) {
	client := &fakeSQS{}
	conn, sched := newTestConnection(t, client)

	var value any
	require.NoError(t, conn.ReceiveMessage("http://q", ReceiveOptions{}, func(v any, err error) {
		require.NoError(t, err)
		value = v
	}))
	waitPending(t, conn, 1)
	sched.Tick()

	call := client.lastCall()
	require.Equal(t, "http://q", call["QueueUrl"])
	require.Equal(t, 1, call["MaxNumberOfMessages"])
	require.Equal(t, []string{"ApproximateReceiveCount"}, call["MessageAttributeNames"])
	require.Contains(t, call, "WaitTimeSeconds")
	require.Nil(t, call["WaitTimeSeconds"])
	require.NotContains(t, call, "VisibilityTimeout")
	require.NotContains(t, call, "AttributeNames")
	require.Contains(t, value, "Messages")

	wait := 20
	require.NoError(t, conn.ReceiveMessage("http://q", ReceiveOptions{
		NumberOfMessages:     10,
		VisibilityTimeout:    5,
		AttributeNames:       []string{"All"},
		SystemAttributeNames: []string{"ApproximateReceiveCount"},
		WaitTimeSeconds:      &wait,
	}, nil))
	require.Eventually(t, func() bool {
		return client.lastCall()["MaxNumberOfMessages"] == 10
	}, waitTimeout, time.Millisecond)
	call = client.lastCall()
	require.Equal(t, 5, call["VisibilityTimeout"])
	require.Equal(t, 20, call["WaitTimeSeconds"])
	require.Equal(t, []string{"All"}, call["MessageAttributeNames"])
	require.Equal(t, []string{"ApproximateReceiveCount"}, call["AttributeNames"])
}

func TestDeleteMessage_Kwargs(t *testing.T) {
	client := &fakeSQS{}
	conn, sched := newTestConnection(t, client)

	done := false
	require.NoError(t, conn.DeleteMessage("http://q", "rh-9", func(_ any, err error) {
		require.NoError(t, err)
		done = true
	}))
	waitPending(t, conn, 1)
	sched.Tick()

	require.True(t, done)
	require.Equal(t, invoke.Kwargs{"QueueUrl": "http://q", "ReceiptHandle": "rh-9"}, client.lastCall())
}

func TestExecute_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	conn, _ := newTestConnection(t, &fakeSQS{}, WithTracerProvider(tp), WithWorkers(1))

	require.NoError(t, conn.Submit("echo", nil, nil, 1))
	require.NoError(t, conn.Submit("fail", nil, nil))
	require.NoError(t, conn.Stop(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "sqsasync.echo", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, "sqsasync.fail", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestConfig_Options(t *testing.T) {
	t.Setenv("SQSASYNC_WORKERS", "3")
	t.Setenv("SQSASYNC_DRAIN_INTERVAL", "250ms")
	t.Setenv("SQSASYNC_ERROR_POLICY", "report")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, 250*time.Millisecond, cfg.DrainInterval)
	require.Equal(t, 1000, cfg.DrainLimit)

	conn, sched := newTestConnection(t, &fakeSQS{}, cfg.Options()...)
	require.Equal(t, 3, conn.pool.Workers())
	require.Equal(t, 250*time.Millisecond, sched.interval)
	require.Equal(t, ReportErrors, conn.policy)
}
