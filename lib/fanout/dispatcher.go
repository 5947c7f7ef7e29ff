package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("fanout")

// ErrClosed is returned by Enqueue and Flush after Close.
var ErrClosed = errors.New("fanout: dispatcher is closed")

// --------------------------------------------------------------------------
// Jobs
// --------------------------------------------------------------------------

// Op is the kind of a fan-out job
type Op uint8

const (
	OpPush   Op = iota // insert the status into every recipient timeline
	OpRemove           // retract the status from every recipient timeline
)

func (o Op) String() string {
	switch o {
	case OpPush:
		return "push"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", o)
	}
}

// Job applies one status to a list of recipient timelines.
// Who the recipients are (followers, the author, ...) is decided by the caller.
type Job struct {
	Op    Op
	ID    timeline.StatusID
	Users []string
}

// task is a queue item, either a job or a flush barrier
type task struct {
	job     Job
	barrier chan struct{}
}

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher applies fan-out jobs asynchronously to a store.
// Any number of goroutines may Enqueue, jobs are applied one at a time by a single
// worker goroutine in the order they were enqueued. Failed jobs are logged and
// counted, they are not retried.
type Dispatcher struct {
	store store.IStore
	queue *LockFreeMPSC[task]

	// mu orders Enqueue against Close, so no job is pushed after the queue closed
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	enqueued *metrics.Counter
	applied  *metrics.Counter
	failed   *metrics.Counter
	duration *metrics.Histogram
}

// NewDispatcher creates a dispatcher for s and starts its worker.
func NewDispatcher(s store.IStore) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		queue:    NewLockFreeMPSC[task](),
		done:     make(chan struct{}),
		enqueued: metrics.GetOrCreateCounter("dfeed_fanout_jobs_enqueued_total"),
		applied:  metrics.GetOrCreateCounter("dfeed_fanout_jobs_applied_total"),
		failed:   metrics.GetOrCreateCounter("dfeed_fanout_jobs_failed_total"),
		duration: metrics.GetOrCreateHistogram("dfeed_fanout_job_duration_seconds"),
	}
	go d.run()
	return d
}

// Enqueue schedules job. It returns immediately, the job is applied later.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (d *Dispatcher) Enqueue(job Job) error {
	if len(job.Users) == 0 {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || !d.queue.Push(&task{job: job}) {
		return ErrClosed
	}
	d.enqueued.Inc()
	return nil
}

// Flush blocks until every job enqueued before the call has been applied,
// or until ctx is done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	d.mu.RLock()
	ok := !d.closed && d.queue.Push(&task{barrier: barrier})
	d.mu.RUnlock()
	if !ok {
		return ErrClosed
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs (approximate).
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Close stops accepting jobs and waits until the queued jobs are applied.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.queue.Close()
	d.mu.Unlock()

	<-d.done
}

// run is the single worker goroutine
func (d *Dispatcher) run() {
	defer close(d.done)

	for t := range d.queue.Recv() {
		if t.barrier != nil {
			close(t.barrier)
			continue
		}

		start := time.Now()
		if err := d.apply(t.job); err != nil {
			d.failed.Inc()
			log.Errorf("fan-out %s of %d to %d timelines failed (retryable=%v): %v",
				t.job.Op, t.job.ID, len(t.job.Users), store.IsRetryable(err), err)
		} else {
			d.applied.Inc()
		}
		d.duration.UpdateDuration(start)
	}
}

// apply executes one job against the store
func (d *Dispatcher) apply(job Job) error {
	switch job.Op {
	case OpPush:
		return d.store.PushMany(job.Users, job.ID)
	case OpRemove:
		var errs []error
		for _, user := range job.Users {
			if err := d.store.Remove(user, job.ID); err != nil {
				errs = append(errs, fmt.Errorf("remove from %s: %w", user, err))
			}
		}
		return errors.Join(errs...)
	default:
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown fan-out operation %s", job.Op))
	}
}
