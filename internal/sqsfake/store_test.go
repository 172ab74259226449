package sqsfake

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewStore(clk)
	require.NoError(t, s.CreateQueue("jobs", map[string]string{"VisibilityTimeout": "10"}))
	return s, clk
}

func TestStore_VisibilityTimeout(t *testing.T) {
	s, clk := newStore(t)
	_, _, err := s.Send("jobs", "hello", 0, nil)
	require.NoError(t, err)

	got, err := s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "1", got[0].Attributes["ApproximateReceiveCount"])

	got, err = s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Empty(t, got, "message should be hidden")

	clk.Advance(10 * time.Second)
	got, err = s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "2", got[0].Attributes["ApproximateReceiveCount"])
}

func TestStore_VisibilityOverride(t *testing.T) {
	s, clk := newStore(t)
	_, _, err := s.Send("jobs", "hello", 0, nil)
	require.NoError(t, err)

	zero := time.Duration(0)
	got, err := s.Receive("jobs", 1, &zero)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Zero visibility makes the message immediately receivable again.
	got, err = s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	clk.Advance(5 * time.Second)
	got, err = s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStore_DelayedSend(t *testing.T) {
	s, clk := newStore(t)
	_, _, err := s.Send("jobs", "later", 3*time.Second, nil)
	require.NoError(t, err)

	got, _ := s.Receive("jobs", 1, nil)
	require.Empty(t, got)

	clk.Advance(3 * time.Second)
	got, _ = s.Receive("jobs", 1, nil)
	require.Len(t, got, 1)
}

func TestStore_Delete(t *testing.T) {
	s, _ := newStore(t)
	_, _, err := s.Send("jobs", "hello", 0, nil)
	require.NoError(t, err)

	got, err := s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete("jobs", got[0].ReceiptHandle))
	require.Zero(t, s.Len("jobs"))

	require.ErrorIs(t, s.Delete("jobs", got[0].ReceiptHandle), ErrReceiptHandleInvalid)
	require.ErrorIs(t, s.Delete("missing", "x"), ErrQueueNotFound)
}

func TestStore_ReceiveLimits(t *testing.T) {
	s, _ := newStore(t)
	for i := 0; i < 12; i++ {
		_, _, err := s.Send("jobs", "m", 0, nil)
		require.NoError(t, err)
	}

	_, err := s.Receive("jobs", 11, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	got, err := s.Receive("jobs", 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 10)

	got, err = s.Receive("jobs", 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestStore_CreateQueueIsIdempotent(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.CreateQueue("jobs", nil))
	require.Equal(t, []string{"jobs"}, s.QueueNames())

	require.ErrorIs(t, s.CreateQueue("", nil), ErrInvalidParameter)
	require.ErrorIs(t, s.CreateQueue("bad", map[string]string{"VisibilityTimeout": "soon"}), ErrInvalidParameter)
}

func TestStore_ChangesClosedBySendAfterSnapshot(t *testing.T) {
	s, clk := newStore(t)
	changed := s.changes()

	got, err := s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	// A send landing between the empty receive and the wait must not be missed.
	_, _, err = s.Send("jobs", "late", 0, nil)
	require.NoError(t, err)
	select {
	case <-changed:
	default:
		t.Fatal("channel taken before the receive was not closed by Send")
	}

	require.Zero(t, s.nextVisible("jobs"))
	_, err = s.Receive("jobs", 1, nil)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, s.nextVisible("jobs"))
	clk.Advance(4 * time.Second)
	require.Equal(t, 6*time.Second, s.nextVisible("jobs"))
}
