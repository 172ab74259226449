package sqsasync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubSQS struct {
	mu        sync.Mutex
	receives  []map[string]any
	deleteErr error
	deletes   int
}

func (s *stubSQS) ReceiveMessage(_ context.Context, kwargs map[string]any) ([]string, error) {
	s.mu.Lock()
	s.receives = append(s.receives, kwargs)
	s.mu.Unlock()
	n, _ := kwargs["MaxNumberOfMessages"].(int)
	msgs := make([]string, n)
	for i := range msgs {
		msgs[i] = "stub"
	}
	return msgs, nil
}

func (s *stubSQS) DeleteMessage(_ context.Context, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return s.deleteErr
}

func TestScenario_ReceiveFiveMessages(t *testing.T) {
	conn, sched := newTestConnection(t, &stubSQS{})

	calls := 0
	var got []string
	require.NoError(t, conn.ReceiveMessage("q1", ReceiveOptions{NumberOfMessages: 5}, func(v any, err error) {
		require.NoError(t, err)
		calls++
		got = v.([]string)
	}))
	waitPending(t, conn, 1)
	sched.Tick()
	sched.Tick()

	require.Equal(t, 1, calls)
	require.Len(t, got, 5)
}

func TestScenario_FailedDeleteWithoutCallback(t *testing.T) {
	client := &stubSQS{deleteErr: errors.New("access denied")}
	reported := 0
	conn, sched := newTestConnection(t, client,
		WithErrorReporter(func(string, string, error) { reported++ }))

	require.NoError(t, conn.DeleteMessage("q1", "handle-123", nil))
	require.NoError(t, conn.Stop(context.Background()))
	sched.Tick()

	require.Equal(t, 1, client.deletes)
	require.Zero(t, conn.Pending())
	require.Zero(t, reported)
}

func TestScenario_SlowAndFastOperationsOnTwoWorkers(t *testing.T) {
	release := make(chan struct{})
	caller := CallerFunc(func(_ context.Context, op string, _ []any, _ Kwargs) (any, error) {
		if op == "slow" {
			<-release
		}
		return op, nil
	})
	conn, sched := newTestConnection(t, caller, WithWorkers(2))

	var order []string
	cb := func(v any, err error) {
		require.NoError(t, err)
		order = append(order, v.(string))
	}
	require.NoError(t, conn.Submit("slow", cb, nil))
	require.NoError(t, conn.Submit("fast", cb, nil))

	// The fast result lands first while the slow one is still running.
	waitPending(t, conn, 1)
	sched.Tick()
	require.Equal(t, []string{"fast"}, order)

	close(release)
	waitPending(t, conn, 1)
	sched.Tick()
	sched.Tick()
	require.Equal(t, []string{"fast", "slow"}, order)
}

func TestScenario_VisibilityTimeoutOnlyWhenSet(t *testing.T) {
	client := &stubSQS{}
	conn, _ := newTestConnection(t, client, WithWorkers(1))

	require.NoError(t, conn.ReceiveMessage("q1", ReceiveOptions{VisibilityTimeout: 0}, nil))
	require.NoError(t, conn.ReceiveMessage("q1", ReceiveOptions{VisibilityTimeout: 30}, nil))
	require.NoError(t, conn.Stop(context.Background()))

	require.Len(t, client.receives, 2)
	require.NotContains(t, client.receives[0], "VisibilityTimeout")
	require.Equal(t, 30, client.receives[1]["VisibilityTimeout"])
}
