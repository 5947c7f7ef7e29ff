package fanout

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Lock-free MPSC queue
// --------------------------------------------------------------------------

// node is one element of the linked list, the head is always a consumed sentinel
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is an unbounded multi-producer single-consumer queue.
// Producers append with CAS on the tail, a single goroutine moves the items to the
// channel returned by Recv.
//
// Items are delivered in the order their Push completed. Under concurrent Push
// calls that is not necessarily the order in which the calls started.
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan *T
	closed atomic.Bool
	done   chan struct{}

	// mu and cond park the consumer while the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates the queue and starts its consumer goroutine.
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &node[T]{}
	q := &LockFreeMPSC[T]{
		out:  make(chan *T),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()
	return q
}

// Push appends value. It returns false for nil values and after Close.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// A Push racing with Close may report true for an item that is never delivered,
// callers that need delivery guarantees must order Push before Close themselves.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	var spins uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next != nil {
			// another producer appended but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		} else if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.wake()
			return true
		}

		// exponential backoff under contention
		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. Holding mu pairs with the emptiness check in consume,
// so a signal can not fall between that check and cond.Wait.
func (q *LockFreeMPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume forwards items to out until the queue is closed and drained
func (q *LockFreeMPSC[T]) consume() {
	defer close(q.done)
	defer close(q.out)

	for {
		drained := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = true
			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil // next is the new sentinel
		}

		if !drained {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil {
				if q.closed.Load() {
					q.mu.Unlock()
					return
				}
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the items are delivered on.
// It is closed once the queue is closed and all items were received.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops accepting new items. Items already in the queue are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// Done is closed after the consumer goroutine exited.
func (q *LockFreeMPSC[T]) Done() <-chan struct{} {
	return q.done
}

// Len counts the queued items. It is O(n) and meant for monitoring only.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	for current := q.head.Load().next.Load(); current != nil; current = current.next.Load() {
		count++
	}
	return count
}
