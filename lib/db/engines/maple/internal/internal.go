package internal

import (
	"sync"

	"github.com/ValentinKolb/dFeed/lib/db/util"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (one ranked timeline with its lock)
// --------------------------------------------------------------------------

// Entry stores the timeline of a single key.
// The mutex is the unit of mutual exclusion: every access to Timeline must hold it.
type Entry struct {
	mu       sync.Mutex
	Timeline *timeline.RankedTimeline
}

// NewEntry creates an empty entry with the given size bound
func NewEntry(maxSize int) *Entry {
	return &Entry{
		Timeline: timeline.New(maxSize),
	}
}

// With runs fn while holding the entry lock.
func (e *Entry) With(fn func(tl *timeline.RankedTimeline)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.Timeline)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
// Each shard has its own independent map of timelines
type Shard struct {
	Data *xsync.MapOf[string, *Entry] // Map of timelines by key
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, *Entry](),
	}
}

// GetShard returns the shard responsible for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key string, seed uint64, shards []*T) *T {
	return shards[util.ShardIndex(key, seed, len(shards))]
}
