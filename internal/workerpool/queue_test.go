package workerpool

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	for i := 0; i < 200; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d rejected", i)
		}
	}
	for i := 0; i < 200; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("TryPop = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected empty queue")
	}
}

// Pop must block until an item is pushed.
func TestQueue_PopBlocksUntilPush(t *testing.T) {
	t.Parallel()
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Pop returned %q before any push", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("x")
	select {
	case v := <-got:
		if v != "x" {
			t.Fatalf("Pop = %q, want x", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after push")
	}
}

// Close keeps queued items poppable and then releases blocked consumers.
func TestQueue_CloseDrainsThenReleases(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	q.Push(1)
	q.Close()

	if q.Push(2) {
		t.Fatal("push after close accepted")
	}
	if v, ok := q.Pop(); !ok || v != 1 {
		t.Fatalf("Pop = (%d, %v), want (1, true)", v, ok)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Pop(); ok {
				t.Error("Pop on closed empty queue returned an item")
			}
		}()
	}
	wg.Wait()
}

func TestQueue_Discard(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	if n := q.Discard(); n != 10 {
		t.Fatalf("Discard = %d, want 10", n)
	}
	if q.Len() != 0 {
		t.Fatalf("Len = %d after discard", q.Len())
	}
}

// Many producers and consumers never lose or duplicate items.
func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	t.Parallel()
	const producers, perProducer = 8, 500
	q := NewQueue[int]()

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		cwg  sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(base int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base*perProducer + i)
			}
		}(p)
	}
	pwg.Wait()
	q.Close()
	cwg.Wait()

	if len(seen) != producers*perProducer {
		t.Fatalf("saw %d distinct items, want %d", len(seen), producers*perProducer)
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("item %d seen %d times", v, n)
		}
	}
}
