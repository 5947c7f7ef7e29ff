package fanout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/engines/maple"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/store/lstore"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() store.IStore {
	return lstore.NewLocalStore(func() db.TimelineDB { return maple.NewMapleDB(nil) })
}

func flush(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))
}

func TestDispatcherPushAndRemove(t *testing.T) {
	s := newStore()
	d := NewDispatcher(s)
	defer d.Close()

	followers := []string{"alice", "bob", "carol"}
	require.NoError(t, d.Enqueue(Job{Op: OpPush, ID: 10, Users: followers}))
	require.NoError(t, d.Enqueue(Job{Op: OpPush, ID: 20, Users: followers}))
	require.NoError(t, d.Enqueue(Job{Op: OpRemove, ID: 10, Users: []string{"bob"}}))
	flush(t, d)

	for user, want := range map[string][]timeline.StatusID{
		"alice": {20, 10},
		"bob":   {20},
		"carol": {20, 10},
	} {
		page, err := s.Query(user, timeline.QueryParams{})
		require.NoError(t, err)
		assert.Equal(t, want, page, user)
	}
}

func TestDispatcherConcurrentPublishers(t *testing.T) {
	s := newStore()
	d := NewDispatcher(s)
	defer d.Close()

	const publishers = 8
	const posts = 50

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < posts; i++ {
				id := timeline.StatusID(p*posts + i + 1)
				assert.NoError(t, d.Enqueue(Job{Op: OpPush, ID: id, Users: []string{"reader", fmt.Sprintf("author-%d", p)}}))
			}
		}(p)
	}
	wg.Wait()
	flush(t, d)

	n, err := s.Len("reader")
	require.NoError(t, err)
	assert.Equal(t, publishers*posts, n)

	n, err = s.Len("author-3")
	require.NoError(t, err)
	assert.Equal(t, posts, n)
	assert.Zero(t, d.Pending())
}

func TestDispatcherClose(t *testing.T) {
	s := newStore()
	d := NewDispatcher(s)

	for i := 1; i <= 100; i++ {
		require.NoError(t, d.Enqueue(Job{Op: OpPush, ID: timeline.StatusID(i), Users: []string{"alice"}}))
	}
	d.Close()
	d.Close() // idempotent

	// queued jobs are applied before Close returns
	n, err := s.Len("alice")
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	assert.ErrorIs(t, d.Enqueue(Job{Op: OpPush, ID: 1, Users: []string{"alice"}}), ErrClosed)
	assert.ErrorIs(t, d.Flush(context.Background()), ErrClosed)
}

// failingStore reports every operation as unavailable
type failingStore struct {
	store.IStore
	mu    sync.Mutex
	calls int
}

func (f *failingStore) PushMany([]string, timeline.StatusID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return store.NewError(store.RetCUnavailable, "backing store down")
}

func (f *failingStore) Remove(string, timeline.StatusID) error {
	return f.PushMany(nil, 0)
}

func TestDispatcherFailuresDoNotStopWorker(t *testing.T) {
	fs := &failingStore{}
	d := NewDispatcher(fs)
	defer d.Close()

	require.NoError(t, d.Enqueue(Job{Op: OpPush, ID: 1, Users: []string{"alice"}}))
	require.NoError(t, d.Enqueue(Job{Op: OpRemove, ID: 1, Users: []string{"alice", "bob"}}))
	require.NoError(t, d.Enqueue(Job{Op: Op(9), ID: 1, Users: []string{"alice"}}))
	flush(t, d)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 3, fs.calls)
}

func TestApplyErrors(t *testing.T) {
	d := &Dispatcher{store: &failingStore{}}

	err := d.apply(Job{Op: OpRemove, ID: 1, Users: []string{"alice", "bob"}})
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))

	err = d.apply(Job{Op: Op(9), Users: []string{"alice"}})
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
}

func TestFlushHonoursContext(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(&blockingStore{block: block})
	defer d.Close()
	defer close(block)

	require.NoError(t, d.Enqueue(Job{Op: OpPush, ID: 1, Users: []string{"alice"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Flush(ctx), context.DeadlineExceeded)
}

// blockingStore blocks PushMany until block is closed
type blockingStore struct {
	store.IStore
	block chan struct{}
}

func (b *blockingStore) PushMany([]string, timeline.StatusID) error {
	<-b.block
	return nil
}
