package fanout

import (
	"sync"
	"testing"
	"time"
)

func recvOne[T any](t *testing.T, q *LockFreeMPSC[T]) *T {
	t.Helper()
	select {
	case v := <-q.Recv():
		return v
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for item")
		return nil
	}
}

// TestQueueOrder verifies that a single producer sees FIFO delivery
func TestQueueOrder(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("Failed to push item %d", i)
		}
	}
	for i := 0; i < 100; i++ {
		if got := *recvOne(t, q); got != i {
			t.Fatalf("Expected %d, got %d", i, got)
		}
	}

	if q.Push(nil) {
		t.Errorf("Push(nil) should be rejected")
	}
}

// TestQueueConcurrentProducers verifies that no item is lost or duplicated
func TestQueueConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const producers = 10
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				q.Push(&v)
			}
		}(p)
	}

	seen := make(map[int]bool, producers*perProducer)
	for len(seen) < producers*perProducer {
		v := *recvOne(t, q)
		if seen[v] {
			t.Fatalf("Item %d delivered twice", v)
		}
		seen[v] = true
	}
	wg.Wait()
}

// TestQueueClose verifies that Close drains queued items and then closes Recv
func TestQueueClose(t *testing.T) {
	q := NewLockFreeMPSC[string]()

	for _, s := range []string{"a", "b", "c"} {
		s := s
		q.Push(&s)
	}
	q.Close()

	extra := "late"
	if q.Push(&extra) {
		t.Errorf("Push after Close should be rejected")
	}

	var got []string
	for v := range q.Recv() {
		got = append(got, *v)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Expected [a b c], got %v", got)
	}

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatalf("Consumer did not exit after Close")
	}
}

// TestQueueWakeup pushes with pauses so the consumer parks between items
func TestQueueWakeup(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 20; i++ {
		v := i
		q.Push(&v)
		if got := *recvOne(t, q); got != i {
			t.Fatalf("Expected %d, got %d", i, got)
		}
		time.Sleep(time.Millisecond)
	}
	if n := q.Len(); n != 0 {
		t.Errorf("Expected empty queue, got %d", n)
	}
}

func BenchmarkQueueMultiProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			v := i
			q.Push(&v)
			i++
		}
	})
}
